package domain

import "context"

// OrderFilter ограничивает выборку заказов. Пустой Status означает «все статусы».
type OrderFilter struct {
	Status OrderStatus
}

// Matches проверяет, попадает ли заказ под фильтр.
func (f OrderFilter) Matches(order Order) bool {
	return f.Status == "" || order.Status == f.Status
}

// OrderRepository описывает требования к хранилищу агрегатов заказа.
type OrderRepository interface {
	// InsertAggregate атомарно сохраняет заказ вместе с позициями.
	// Либо видны заказ и все его позиции, либо ничего.
	InsertAggregate(ctx context.Context, order Order) (Order, error)
	// Count возвращает количество заказов под фильтром.
	Count(ctx context.Context, filter OrderFilter) (int, error)
	// ListPage возвращает заказы без позиций в порядке created_at ASC, id ASC.
	ListPage(ctx context.Context, skip, take int, filter OrderFilter) ([]Order, error)
	// FetchWithLines возвращает заказ с позициями или ErrOrderNotFound.
	FetchWithLines(ctx context.Context, id string) (Order, error)
	// UpdateStatus меняет статус и возвращает обновлённый заказ с позициями.
	UpdateStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
}
