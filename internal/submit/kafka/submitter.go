package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

// Submitter отправляет офлайн-заказы в Kafka topic. Ключ сообщения — id заказа,
// поэтому повторные отправки одного заказа попадают в одну партицию.
type Submitter struct {
	producer *Producer
	topic    string
}

// NewSubmitter создаёт Kafka-реализацию OrderSubmitter.
func NewSubmitter(producer *Producer, topic string) *Submitter {
	if topic == "" {
		topic = TopicOfflineOrders
	}
	return &Submitter{producer: producer, topic: topic}
}

func (s *Submitter) SubmitOrder(ctx context.Context, order domain.OfflineOrder) error {
	if s == nil || s.producer == nil {
		return fmt.Errorf("kafka submitter is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	headers := map[string]string{
		HeaderEventType:  string(EventTypeOfflineOrderSubmitted),
		HeaderOrderID:    order.ID,
		HeaderSupplierID: order.SupplierID,
		HeaderAttempt:    strconv.Itoa(order.Attempts + 1),
	}

	err := s.producer.PublishEvent(s.topic, order.ID, NewOrderEvent(order), headers)
	if err == nil {
		return nil
	}
	if isPermanent(err) {
		return fmt.Errorf("%w: %w", domain.ErrSubmitRejected, err)
	}
	return err
}

// isPermanent — ошибки брокера, которые не исчезнут при повторе того же сообщения.
func isPermanent(err error) bool {
	return errors.Is(err, sarama.ErrMessageSizeTooLarge) ||
		errors.Is(err, sarama.ErrInvalidMessage) ||
		errors.Is(err, sarama.ErrUnknownTopicOrPartition)
}

var _ domain.OrderSubmitter = (*Submitter)(nil)
