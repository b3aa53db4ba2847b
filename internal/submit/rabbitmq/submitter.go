package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

const (
	DefaultExchange   = "vendor.orders"
	DefaultRoutingKey = "order.offline"
)

// Submitter публикует заказ в exchange. MessageId = id заказа, чтобы
// потребитель мог отбросить повтор после ретрая.
type Submitter struct {
	publisher  Publisher
	exchange   string
	routingKey string
	appID      string
}

// NewSubmitter создаёт AMQP-реализацию OrderSubmitter.
func NewSubmitter(publisher Publisher, exchange, routingKey, appID string) *Submitter {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if routingKey == "" {
		routingKey = DefaultRoutingKey
	}
	return &Submitter{
		publisher:  publisher,
		exchange:   exchange,
		routingKey: routingKey,
		appID:      appID,
	}
}

func (s *Submitter) SubmitOrder(ctx context.Context, order domain.OfflineOrder) error {
	if s == nil || s.publisher == nil {
		return fmt.Errorf("amqp submitter is not initialized")
	}

	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	acked, err := s.publisher.Publish(ctx, s.exchange, s.routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    order.ID,
		AppId:        s.appID,
		Timestamp:    time.Now().UTC(),
		Type:         "order.offline",
		Headers: amqp.Table{
			"supplier_id": order.SupplierID,
			"attempt":     int32(order.Attempts + 1),
		},
		Body: body,
	})
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("%w: broker nacked order %s", domain.ErrSubmitRejected, order.ID)
	}
	return nil
}

var _ domain.OrderSubmitter = (*Submitter)(nil)
