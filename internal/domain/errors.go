package domain

import "errors"

var (
	// Ошибка отсутствующего имени поставщика.
	ErrSupplierRequired = errors.New("supplier_name is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего названия позиции.
	ErrItemNameRequired = errors.New("item name is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отсутствующей единицы измерения.
	ErrItemUnitRequired = errors.New("item unit is required")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount must be non-negative")
	// ErrOrderNotFound возвращается, если заказа нет в очереди.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotFailed — retry разрешён только для failed-заказов.
	ErrOrderNotFailed = errors.New("order is not in failed state")
	// ErrInvalidTransition — недопустимый переход статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrSyncInProgress — проход синхронизации уже выполняется.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrOffline — нет связи с сервисом приёма заказов.
	ErrOffline = errors.New("order acceptance service is unreachable")
	// ErrSlotNotFound — слот в локальном хранилище ещё не записан.
	ErrSlotNotFound = errors.New("storage slot not found")
	// ErrSubmitRejected — сервис приёма заказов отклонил заказ.
	ErrSubmitRejected = errors.New("order rejected by acceptance service")
)

// IsInvalidDraft проверяет, вызвана ли ошибка некорректным черновиком заказа.
func IsInvalidDraft(err error) bool {
	return errors.Is(err, ErrSupplierRequired) ||
		errors.Is(err, ErrItemsRequired) ||
		errors.Is(err, ErrItemNameRequired) ||
		errors.Is(err, ErrItemQtyInvalid) ||
		errors.Is(err, ErrItemUnitRequired) ||
		errors.Is(err, ErrAmountNegative)
}
