package domain

import "context"

// QueueSlotKey — имя слота, в котором хранится вся очередь офлайн-заказов.
const QueueSlotKey = "offlineOrders"

// ConnectivitySource сообщает о доступности сети и её изменениях.
type ConnectivitySource interface {
	// IsOnline возвращает текущее состояние связи.
	IsOnline() bool
	// Subscribe регистрирует обработчик переходов online<->offline.
	// Возвращает функцию отписки.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// OrderSubmitter доставляет заказ во внешний сервис приёма заказов.
type OrderSubmitter interface {
	// SubmitOrder возвращает nil, если заказ принят.
	// Повторная отправка того же ID должна быть безопасной на стороне приёмника.
	SubmitOrder(ctx context.Context, order OfflineOrder) error
}

// SlotStore — долговременное локальное key-value хранилище.
type SlotStore interface {
	// ReadSlot возвращает содержимое слота или ErrSlotNotFound.
	ReadSlot(ctx context.Context, key string) ([]byte, error)
	// WriteSlot атомарно перезаписывает слот целиком.
	WriteSlot(ctx context.Context, key string, value []byte) error
}
