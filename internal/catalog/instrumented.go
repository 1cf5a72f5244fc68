package catalog

import (
	"context"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

// Instrumented записывает метрики обращений к каталогу.
type Instrumented struct {
	next    domain.ProductCatalog
	metrics *metrics.CatalogMetrics
}

// NewInstrumented оборачивает каталог метриками.
func NewInstrumented(next domain.ProductCatalog, m *metrics.CatalogMetrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (i *Instrumented) Validate(ctx context.Context, ids []string) ([]domain.Product, error) {
	done := i.metrics.RequestStarted()
	products, err := i.next.Validate(ctx, ids)
	done(err == nil)
	return products, err
}

func (i *Instrumented) Ready() bool {
	return ready(i.next)
}

// readinessReporter реализуют каталоги, которым нужен прогрев перед запросами.
type readinessReporter interface {
	Ready() bool
}

func ready(c domain.ProductCatalog) bool {
	if r, ok := c.(readinessReporter); ok {
		return r.Ready()
	}
	return true
}
