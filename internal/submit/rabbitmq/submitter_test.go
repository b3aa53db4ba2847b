package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

type publishedMessage struct {
	exchange   string
	routingKey string
	msg        amqp.Publishing
}

type fakePublisher struct {
	acked     bool
	err       error
	published []publishedMessage
}

func (f *fakePublisher) Publish(_ context.Context, exchange, routingKey string, msg amqp.Publishing) (bool, error) {
	f.published = append(f.published, publishedMessage{exchange: exchange, routingKey: routingKey, msg: msg})
	return f.acked, f.err
}

func testOrder() domain.OfflineOrder {
	return domain.OfflineOrder{
		ID:           "order-1",
		SupplierID:   "sup-1",
		SupplierName: "Spice Traders",
		Items:        []domain.OrderItem{{Name: "Chilli", Quantity: decimal.RequireFromString("2.5"), Unit: "kg"}},
		TotalAmount:  decimal.RequireFromString("312.50"),
		Timestamp:    1_700_000_000_000,
		Status:       domain.OrderStatusPending,
	}
}

func TestSubmitter_PublishesPersistentMessage(t *testing.T) {
	publisher := &fakePublisher{acked: true}
	submitter := NewSubmitter(publisher, "", "", "vendor-sync")

	require.NoError(t, submitter.SubmitOrder(context.Background(), testOrder()))
	require.Len(t, publisher.published, 1)

	got := publisher.published[0]
	require.Equal(t, DefaultExchange, got.exchange)
	require.Equal(t, DefaultRoutingKey, got.routingKey)
	require.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	require.Equal(t, "order-1", got.msg.MessageId)
	require.Equal(t, "application/json", got.msg.ContentType)
	require.Equal(t, "sup-1", got.msg.Headers["supplier_id"])

	var decoded domain.OfflineOrder
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	require.Equal(t, "Spice Traders", decoded.SupplierName)
	require.True(t, decoded.TotalAmount.Equal(decimal.RequireFromString("312.50")))
}

func TestSubmitter_NackIsRejection(t *testing.T) {
	submitter := NewSubmitter(&fakePublisher{acked: false}, "x", "y", "")

	err := submitter.SubmitOrder(context.Background(), testOrder())
	require.ErrorIs(t, err, domain.ErrSubmitRejected)
}

func TestSubmitter_PublishError(t *testing.T) {
	boom := errors.New("channel closed")
	submitter := NewSubmitter(&fakePublisher{err: boom}, "x", "y", "")

	err := submitter.SubmitOrder(context.Background(), testOrder())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, domain.ErrSubmitRejected)
}

func TestSubmitter_NotInitialized(t *testing.T) {
	var submitter *Submitter
	require.Error(t, submitter.SubmitOrder(context.Background(), testOrder()))
}

func TestRabbit_NilGuards(t *testing.T) {
	var r *Rabbit
	_, err := r.Publish(context.Background(), "x", "y", amqp.Publishing{})
	require.Error(t, err)
	require.True(t, r.IsClosed())
	require.NoError(t, r.Close())
}
