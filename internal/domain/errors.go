package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product id is required")
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceNegative = errors.New("product price must be non-negative")
	// Ошибка неподдерживаемого типа тары.
	ErrContainerInvalid = errors.New("container must be crate or other")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductIDConflict — сгенерированный идентификатор уже занят.
	ErrProductIDConflict = errors.New("product id already exists")

	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("order total must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отсутствующей даты заказа.
	ErrOrderDateRequired = errors.New("order date is required")
	// Ошибка нераспознанной даты заказа.
	ErrOrderDateInvalid = errors.New("order date is invalid")
	// ErrOrderNotFound возвращается, если записи с таким ключом нет в истории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderDateConflict — запись с таким ключом (миллисекундой) уже существует.
	ErrOrderDateConflict = errors.New("order with the same date already exists")

	// ErrNothingToSave — нечего сохранять: итог <= 0 или нет позиций.
	ErrNothingToSave = errors.New("nothing to save")
	// ErrNoOrders — история пуста.
	ErrNoOrders = errors.New("no saved orders")
	// ErrNothingSelected — не выбрано ни одной записи для удаления.
	ErrNothingSelected = errors.New("no items selected")
	// ErrNothingToExport — в выбранном диапазоне нет заказов для выгрузки.
	ErrNothingToExport = errors.New("no filtered data to download")

	// ErrInvalidBackup — файл резервной копии не содержит products и history.
	ErrInvalidBackup = errors.New("invalid backup file")
	// ErrThemeInvalid — неподдерживаемая тема оформления.
	ErrThemeInvalid = errors.New("theme must be dark or light")

	// ErrKeyNotFound — ключа нет в key-value хранилище.
	ErrKeyNotFound = errors.New("key not found")
	// ErrSeedUnavailable — внешний поставщик каталога по умолчанию недоступен.
	ErrSeedUnavailable = errors.New("seed catalog unavailable")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotice проверяет, является ли ошибка уведомлением "нечего делать", а не сбоем.
func IsNotice(err error) bool {
	return errors.Is(err, ErrNothingToSave) ||
		errors.Is(err, ErrNoOrders) ||
		errors.Is(err, ErrNothingSelected) ||
		errors.Is(err, ErrNothingToExport)
}

// IsValidation проверяет, относится ли ошибка к ошибкам валидации входных данных.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrProductIDRequired,
		ErrProductNameRequired,
		ErrProductPriceNegative,
		ErrContainerInvalid,
		ErrItemsRequired,
		ErrAmountNegative,
		ErrItemQtyInvalid,
		ErrItemPriceInvalid,
		ErrOrderDateRequired,
		ErrOrderDateInvalid,
		ErrInvalidBackup,
		ErrThemeInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
