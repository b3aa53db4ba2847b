// Package rabbitmq отправляет офлайн-заказы в RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует сообщение и ждёт подтверждения брокера.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) (acked bool, err error)
}

// Rabbit — соединение и канал в режиме publisher confirms.
type Rabbit struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial подключается к брокеру, объявляет durable topic exchange и включает confirms.
func Dial(url, exchange string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	return &Rabbit{conn: conn, ch: ch}, nil
}

// Publish отправляет сообщение и ждёт ack/nack в пределах ctx.
func (r *Rabbit) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) (bool, error) {
	if r == nil || r.ch == nil {
		return false, errors.New("rabbitmq channel is not initialized")
	}
	confirm, err := r.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil {
		return false, fmt.Errorf("publish to %s: %w", exchange, err)
	}
	if confirm == nil {
		// Канал не в confirm-режиме: считаем доставку принятой.
		return true, nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return false, fmt.Errorf("wait publisher confirm: %w", err)
	}
	return acked, nil
}

// IsClosed сообщает, закрыто ли соединение (используется health-проверкой).
func (r *Rabbit) IsClosed() bool {
	return r == nil || r.conn == nil || r.conn.IsClosed()
}

// Close закрывает канал и соединение.
func (r *Rabbit) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.ch != nil {
		if err := r.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Publisher = (*Rabbit)(nil)
