// Package ordersv1 описывает публичный контракт сервиса заказов: сообщения, gRPC-сервис и клиента.
// Сообщения передаются в JSON через кодек с content-subtype "json".
package ordersv1

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem — запрошенная позиция заказа.
type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
}

// CreateOrderRequest — запрос на создание заказа.
type CreateOrderRequest struct {
	Items []LineItem `json:"items"`
}

// FindAllOrdersRequest — параметры постраничной выборки. Нулевые page/limit заменяются значениями по умолчанию.
type FindAllOrdersRequest struct {
	Page   int32  `json:"page,omitempty"`
	Limit  int32  `json:"limit,omitempty"`
	Status string `json:"status,omitempty"`
}

// FindOneOrderRequest — запрос одного заказа.
type FindOneOrderRequest struct {
	ID string `json:"id"`
}

// ChangeOrderStatusRequest — запрос смены статуса.
type ChangeOrderStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// OrderLine — позиция заказа с отображаемым именем товара.
type OrderLine struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name,omitempty"`
}

// Order — заказ. В списке заказов Lines не заполняется.
type Order struct {
	ID          string          `json:"id"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalItems  int32           `json:"totalItems"`
	Status      string          `json:"status"`
	Paid        bool            `json:"paid"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Lines       []OrderLine     `json:"lines,omitempty"`
}

// PageMeta — положение страницы в выборке.
type PageMeta struct {
	Total    int32 `json:"total"`
	Page     int32 `json:"page"`
	LastPage int32 `json:"lastPage"`
}

// OrderPage — ответ FindAllOrders.
type OrderPage struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}
