package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

func testOrder() domain.OfflineOrder {
	return domain.OfflineOrder{
		ID:           "order-1",
		SupplierID:   "sup-1",
		SupplierName: "Fresh Vegetables Delhi",
		Items: []domain.OrderItem{
			{Name: "Onions", Quantity: decimal.NewFromInt(10), Unit: "kg"},
		},
		TotalAmount: decimal.NewFromInt(250),
		Timestamp:   1_700_000_000_000,
		Status:      domain.OrderStatusPending,
	}
}

func newTestSubmitter(t *testing.T) (*Submitter, *mocks.SyncProducer) {
	t.Helper()

	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithSyncProducer(mockProducer, log.WithField("component", "kafka-producer-test"))
	return NewSubmitter(producer, ""), mockProducer
}

func TestSubmitter_SubmitOrder(t *testing.T) {
	t.Parallel()

	submitter, mockProducer := newTestSubmitter(t)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOfflineOrders {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-1" {
			return fmt.Errorf("unexpected key %s", key)
		}

		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var event OrderEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return err
		}
		if event.EventType != EventTypeOfflineOrderSubmitted || event.SupplierName != "Fresh Vegetables Delhi" {
			return fmt.Errorf("unexpected event: %+v", event)
		}
		if !event.TotalAmount.Equal(decimal.NewFromInt(250)) {
			return fmt.Errorf("unexpected amount %s", event.TotalAmount)
		}

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[string(h.Key)] = string(h.Value)
		}
		if headers[HeaderAttempt] != "1" || headers[HeaderSupplierID] != "sup-1" {
			return fmt.Errorf("unexpected headers %v", headers)
		}
		return nil
	})

	if err := submitter.SubmitOrder(context.Background(), testOrder()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitter_TransientError(t *testing.T) {
	t.Parallel()

	submitter, mockProducer := newTestSubmitter(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := submitter.SubmitOrder(context.Background(), testOrder())
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	if errors.Is(err, domain.ErrSubmitRejected) {
		t.Fatal("transient broker error must not be classified as rejection")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitter_PermanentError(t *testing.T) {
	t.Parallel()

	submitter, mockProducer := newTestSubmitter(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrMessageSizeTooLarge)

	err := submitter.SubmitOrder(context.Background(), testOrder())
	if !errors.Is(err, domain.ErrSubmitRejected) {
		t.Fatalf("expected ErrSubmitRejected, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitter_CanceledContext(t *testing.T) {
	t.Parallel()

	submitter, mockProducer := newTestSubmitter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := submitter.SubmitOrder(ctx, testOrder()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitter_NotInitialized(t *testing.T) {
	t.Parallel()

	var submitter *Submitter
	if err := submitter.SubmitOrder(context.Background(), testOrder()); err == nil {
		t.Fatal("expected error for nil submitter")
	}
}

func TestNewOrderEvent(t *testing.T) {
	t.Parallel()

	order := testOrder()
	event := NewOrderEvent(order)

	if event.OrderID != order.ID || event.SupplierID != order.SupplierID {
		t.Fatalf("unexpected event ids: %+v", event)
	}
	if len(event.Items) != 1 || event.Items[0].Unit != "kg" {
		t.Fatalf("unexpected items: %+v", event.Items)
	}
	if !event.CreatedAt.Equal(order.CreatedAt()) {
		t.Fatalf("created_at mismatch: %s", event.CreatedAt)
	}
	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}
}
