package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total amount must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total amount does not match items sum")
	// Ошибка несоответствия количества единиц заказа и позиций.
	ErrItemsCountMismatch = errors.New("order total items does not match items quantity sum")
	// ErrItemsCountOverflow — сумма количеств не помещается в TotalItems.
	ErrItemsCountOverflow = errors.New("order total items overflows int32")
	// ErrItemPriceScale — у цены позиции больше знаков, чем хранит NUMERIC(12,2).
	ErrItemPriceScale = errors.New("item price has more decimal places than storage keeps")
	// ErrInvalidStatus — статус вне поддерживаемого набора.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists — заказ с таким идентификатором уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrAggregateMismatch — записанные строки не совпали с запрошенным набором позиций.
	ErrAggregateMismatch = errors.New("persisted order lines do not match requested lines")
	// ErrCatalogUnavailable — каталог недоступен или не ответил вовремя.
	ErrCatalogUnavailable = errors.New("product catalog unavailable")
	// ErrCatalogMalformedReply — ответ каталога не удалось разобрать.
	ErrCatalogMalformedReply = errors.New("product catalog reply is malformed")
	// ErrUnknownProduct — товар отсутствует в ответе каталога.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInvalidPagination — page или limit меньше единицы.
	ErrInvalidPagination = errors.New("page and limit must be positive")
)

// UnknownProductError уточняет ErrUnknownProduct идентификатором товара.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownProduct, e.ProductID)
}

func (e *UnknownProductError) Unwrap() error { return ErrUnknownProduct }

// InvalidStatusError уточняет ErrInvalidStatus исходным значением.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("%s %q: possible values are %v", ErrInvalidStatus, e.Value, OrderStatuses())
}

func (e *InvalidStatusError) Unwrap() error { return ErrInvalidStatus }

// CreateFailureKind классифицирует причину неудачного создания заказа.
type CreateFailureKind string

const (
	CreateFailureRemoteUnavailable CreateFailureKind = "remote_unavailable"
	CreateFailureUnknownProduct    CreateFailureKind = "unknown_product"
	CreateFailurePersist           CreateFailureKind = "persist_failure"
	CreateFailureInvalidInput      CreateFailureKind = "invalid_input"
)

// CreateOrderError описывает неудачу создания заказа. Детали предназначены для логов,
// клиенту отдаётся только обобщённое сообщение.
type CreateOrderError struct {
	Kind      CreateFailureKind
	ProductID string
	Err       error
}

func (e *CreateOrderError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("create order (%s, product %s): %v", e.Kind, e.ProductID, e.Err)
	}
	return fmt.Sprintf("create order (%s): %v", e.Kind, e.Err)
}

func (e *CreateOrderError) Unwrap() error { return e.Err }

// IsNotFound проверяет, является ли ошибка отсутствием заказа.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// IsCatalogFailure проверяет, относится ли ошибка к обращению в каталог.
func IsCatalogFailure(err error) bool {
	return errors.Is(err, ErrCatalogUnavailable) || errors.Is(err, ErrCatalogMalformedReply)
}
