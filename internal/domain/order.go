package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает состояние заказа. Набор плоский: переходы между статусами не ограничены.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ожидает исполнения.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// OrderStatuses возвращает все поддерживаемые статусы в стабильном порядке.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusCancelled, OrderStatusDelivered}
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCancelled, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// ParseOrderStatus нормализует строковый токен статуса (регистр и пробелы не важны).
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", &InvalidStatusError{Value: raw}
	}
	return status, nil
}

// OrderLine представляет одну позицию заказа.
type OrderLine struct {
	ID      string
	OrderID string
	// ProductID — ссылка на товар удалённого каталога, локального внешнего ключа нет.
	ProductID string
	Quantity  int32
	// Price — снимок цены каталога на момент создания заказа, после создания не меняется.
	Price decimal.Decimal
	// Name — отображаемое имя товара из каталога. В хранилище не сохраняется.
	Name      string
	CreatedAt time.Time
}

// PriceScale — число знаков после запятой, с которым хранятся цены и суммы (NUMERIC(12,2)).
const PriceScale = 2

// SnapshotPrice приводит цену каталога к масштабу хранения, чтобы снимок цены
// и итоги заказа не менялись после записи.
func SnapshotPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(PriceScale)
}

// Subtotal возвращает price*quantity позиции.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt32(l.Quantity))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          string
	TotalAmount decimal.Decimal
	TotalItems  int32
	Status      OrderStatus
	Paid        bool
	Lines       []OrderLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Totals считает сумму и количество единиц по позициям.
// Количество считается в int64, переполнение TotalItems проверяет ItemsCount.
func Totals(lines []OrderLine) (decimal.Decimal, int64) {
	amount := decimal.Zero
	var items int64
	for _, line := range lines {
		amount = amount.Add(line.Subtotal())
		items += int64(line.Quantity)
	}
	return amount, items
}

// ItemsCount приводит сумму количеств к типу TotalItems.
func ItemsCount(items int64) (int32, error) {
	if items < 0 || items > math.MaxInt32 {
		return 0, ErrItemsCountOverflow
	}
	return int32(items), nil
}

// ValidateInvariants проверяет инварианты агрегата и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Lines) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if line.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if !line.Price.Equal(SnapshotPrice(line.Price)) {
			errs = append(errs, ErrItemPriceScale)
		}
	}

	// Сверяем счётчики заказа с позициями.
	amount, items := Totals(o.Lines)
	if !amount.Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}
	if items > math.MaxInt32 {
		errs = append(errs, ErrItemsCountOverflow)
	} else if items != int64(o.TotalItems) {
		errs = append(errs, ErrItemsCountMismatch)
	}

	return errs
}

// Clone возвращает копию заказа с независимым слайсом позиций.
func (o Order) Clone() Order {
	if o.Lines != nil {
		lines := make([]OrderLine, len(o.Lines))
		copy(lines, o.Lines)
		o.Lines = lines
	}
	return o
}
