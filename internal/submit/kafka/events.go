package kafka

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOfflineOrderSubmitted EventType = "order.offline_submitted"
)

// Topics для Kafka
const (
	TopicOfflineOrders = "vendor.orders.offline"
)

// Kafka headers
const (
	HeaderEventType  = "x-event-type"
	HeaderOrderID    = "x-order-id"
	HeaderSupplierID = "x-supplier-id"
	HeaderAttempt    = "x-attempt"
)

// OrderItem — позиция заказа в событии.
type OrderItem struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

// OrderEvent — событие отправки офлайн-заказа поставщику.
type OrderEvent struct {
	EventType    EventType       `json:"event_type"`
	OrderID      string          `json:"order_id"`
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	Items        []OrderItem     `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewOrderEvent собирает событие из заказа очереди.
func NewOrderEvent(order domain.OfflineOrder) *OrderEvent {
	items := make([]OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItem{Name: item.Name, Quantity: item.Quantity, Unit: item.Unit})
	}

	return &OrderEvent{
		EventType:    EventTypeOfflineOrderSubmitted,
		OrderID:      order.ID,
		SupplierID:   order.SupplierID,
		SupplierName: order.SupplierName,
		Items:        items,
		TotalAmount:  order.TotalAmount,
		CreatedAt:    order.CreatedAt(),
		Timestamp:    time.Now().UTC(),
	}
}
