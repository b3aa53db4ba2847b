package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает состояние офлайн-заказа в очереди синхронизации.
type OrderStatus string

const (
	// OrderStatusPending — заказ сохранён локально и ждёт отправки поставщику.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusSynced — сервис приёма заказов подтвердил заказ.
	OrderStatusSynced OrderStatus = "synced"
	// OrderStatusFailed — отправка не удалась; заказ ждёт ручного retry.
	OrderStatusFailed OrderStatus = "failed"
)

// Valid сообщает, является ли статус одним из известных.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusSynced, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// OrderItem — одна позиция заказа (например, 10 kg лука).
type OrderItem struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

// OrderDraft — заказ до постановки в очередь: без id, времени и статуса.
type OrderDraft struct {
	SupplierID   string
	SupplierName string
	Items        []OrderItem
	TotalAmount  decimal.Decimal
}

// ValidateInvariants проверяет черновик и возвращает список замечаний.
func (d OrderDraft) ValidateInvariants() []error {
	var errs []error

	if d.SupplierName == "" {
		errs = append(errs, ErrSupplierRequired)
	}
	if len(d.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if d.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	for _, item := range d.Items {
		if item.Name == "" {
			errs = append(errs, ErrItemNameRequired)
		}
		if !item.Quantity.IsPositive() {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Unit == "" {
			errs = append(errs, ErrItemUnitRequired)
		}
	}

	return errs
}

// OfflineOrder — заказ в очереди синхронизации.
// JSON-имена полей совпадают с форматом, который клиент хранит локально.
type OfflineOrder struct {
	ID           string          `json:"id"`
	SupplierID   string          `json:"supplierId"`
	SupplierName string          `json:"supplierName"`
	Items        []OrderItem     `json:"items"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	// Timestamp — момент создания, миллисекунды с epoch.
	Timestamp int64       `json:"timestamp"`
	Status    OrderStatus `json:"status"`
	Attempts  int         `json:"attempts,omitempty"`
	LastError string      `json:"lastError,omitempty"`
	UpdatedAt int64       `json:"updatedAt,omitempty"`
}

// NewOfflineOrder создаёт pending-заказ из черновика.
func NewOfflineOrder(id string, draft OrderDraft, now time.Time) OfflineOrder {
	items := make([]OrderItem, len(draft.Items))
	copy(items, draft.Items)

	ms := now.UnixMilli()
	return OfflineOrder{
		ID:           id,
		SupplierID:   draft.SupplierID,
		SupplierName: draft.SupplierName,
		Items:        items,
		TotalAmount:  draft.TotalAmount,
		Timestamp:    ms,
		Status:       OrderStatusPending,
		UpdatedAt:    ms,
	}
}

// CreatedAt возвращает время создания заказа.
func (o OfflineOrder) CreatedAt() time.Time {
	return time.UnixMilli(o.Timestamp).UTC()
}

// Clone возвращает копию заказа, не разделяющую слайс позиций.
func (o OfflineOrder) Clone() OfflineOrder {
	if o.Items != nil {
		items := make([]OrderItem, len(o.Items))
		copy(items, o.Items)
		o.Items = items
	}
	return o
}

// MarkSynced переводит pending-заказ в synced.
func (o *OfflineOrder) MarkSynced(now time.Time) error {
	if o.Status != OrderStatusPending {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusSynced
	o.Attempts++
	o.LastError = ""
	o.UpdatedAt = now.UnixMilli()
	return nil
}

// MarkFailed переводит pending-заказ в failed и запоминает причину.
func (o *OfflineOrder) MarkFailed(now time.Time, cause error) error {
	if o.Status != OrderStatusPending {
		return ErrInvalidTransition
	}
	o.Status = OrderStatusFailed
	o.Attempts++
	if cause != nil {
		o.LastError = cause.Error()
	}
	o.UpdatedAt = now.UnixMilli()
	return nil
}

// Requeue возвращает failed-заказ в pending. Вызывается только явным retry.
func (o *OfflineOrder) Requeue(now time.Time) error {
	if o.Status != OrderStatusFailed {
		return ErrOrderNotFailed
	}
	o.Status = OrderStatusPending
	o.UpdatedAt = now.UnixMilli()
	return nil
}

// QueueStats — агрегаты очереди для индикатора в UI и метрик.
type QueueStats struct {
	Pending         int
	Synced          int
	Failed          int
	OldestPendingAt time.Time
}

// Total возвращает общее число заказов в очереди.
func (s QueueStats) Total() int {
	return s.Pending + s.Synced + s.Failed
}
