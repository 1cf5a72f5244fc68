package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// Static — каталог в памяти для локального запуска и тестов.
type Static struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	failures []error
	calls    int
}

// NewStatic создаёт каталог с начальным набором товаров.
func NewStatic(products ...domain.Product) *Static {
	s := &Static{products: make(map[string]domain.Product, len(products))}
	for _, product := range products {
		s.products[product.ID] = product
	}
	return s
}

// ParseProducts разбирает JSON-массив товаров вида [{"id","name","price"}].
func ParseProducts(raw string) ([]domain.Product, error) {
	if raw == "" {
		return nil, nil
	}
	var products []domain.Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, fmt.Errorf("parse catalog products: %w", err)
	}
	for _, product := range products {
		if product.ID == "" {
			return nil, fmt.Errorf("parse catalog products: product without id")
		}
		if product.Price.IsNegative() {
			return nil, fmt.Errorf("parse catalog products: negative price for %s", product.ID)
		}
	}
	return products, nil
}

// Validate возвращает найденные товары в порядке запроса.
func (s *Static) Validate(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	s.mu.Lock()
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			result = append(result, product)
		}
	}
	return result, nil
}

// Put добавляет или заменяет товар.
func (s *Static) Put(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

// SetPrice меняет цену существующего товара.
func (s *Static) SetPrice(id string, price decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok {
		return false
	}
	product.Price = price
	s.products[id] = product
	return true
}

// Remove убирает товар из каталога.
func (s *Static) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

// FailNext заставляет следующие вызовы Validate вернуть переданные ошибки по очереди.
func (s *Static) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// Calls возвращает количество вызовов Validate.
func (s *Static) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// Ready всегда true.
func (s *Static) Ready() bool { return true }
