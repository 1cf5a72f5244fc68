package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// orderRepositoryInMemory — in-memory реализация OrderRepository.
// Вся запись агрегата выполняется под одной блокировкой, поэтому частично созданный заказ не виден.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
	now   func() time.Time
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// InsertAggregate сохраняет заказ с позициями, если ID свободен и инварианты соблюдены.
func (r *orderRepositoryInMemory) InsertAggregate(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrAggregateMismatch, errors.Join(errs...))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.Order{}, domain.ErrOrderAlreadyExists
	}

	stored := order.Clone()
	for i := range stored.Lines {
		stored.Lines[i].OrderID = stored.ID
		// Имя товара не хранится: это данные каталога.
		stored.Lines[i].Name = ""
	}
	r.items[stored.ID] = stored
	return stored.Clone(), nil
}

// Count возвращает количество заказов под фильтром.
func (r *orderRepositoryInMemory) Count(ctx context.Context, filter domain.OrderFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, order := range r.items {
		if filter.Matches(order) {
			count++
		}
	}
	return count, nil
}

// ListPage возвращает срез заказов без позиций, отсортированный по created_at ASC, id ASC.
func (r *orderRepositoryInMemory) ListPage(ctx context.Context, skip, take int, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if !filter.Matches(order) {
			continue
		}
		order.Lines = nil
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(result) {
		return []domain.Order{}, nil
	}
	result = result[skip:]
	if take > 0 && len(result) > take {
		result = result[:take]
	}

	return result, nil
}

// FetchWithLines возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) FetchWithLines(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// UpdateStatus перезаписывает статус заказа и время обновления.
func (r *orderRepositoryInMemory) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if !status.Valid() {
		return domain.Order{}, &domain.InvalidStatusError{Value: string(status)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = r.now()
	r.items[id] = order
	return order.Clone(), nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
