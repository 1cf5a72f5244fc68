package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// RetryConfig конфигурация для retry логики.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию: одна попытка без повторов.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   1,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrying повторяет обращение к каталогу при его недоступности.
type Retrying struct {
	next   domain.ProductCatalog
	config RetryConfig
	logger *log.Entry
}

// NewRetrying оборачивает каталог retry логикой.
func NewRetrying(next domain.ProductCatalog, config RetryConfig, logger *log.Entry) *Retrying {
	if logger == nil {
		logger = log.WithField("component", "catalog-retry")
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &Retrying{next: next, config: config, logger: logger}
}

// Validate вызывает каталог, повторяя только ErrCatalogUnavailable.
func (r *Retrying) Validate(ctx context.Context, ids []string) ([]domain.Product, error) {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		products, err := r.next.Validate(ctx, ids)
		if err == nil {
			if attempt > 1 {
				r.logger.WithField("attempt", attempt).Info("catalog request succeeded after retry")
			}
			return products, nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == r.config.MaxAttempts {
			break
		}

		r.logger.WithError(err).WithFields(log.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("catalog request failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, ctx.Err())
		case <-timer.C:
		}

		// Экспоненциальная задержка с ограничением
		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	return nil, lastErr
}

// Ready делегирует проверку готовности вложенному каталогу.
func (r *Retrying) Ready() bool {
	return ready(r.next)
}

func shouldRetry(err error) bool {
	return errors.Is(err, domain.ErrCatalogUnavailable)
}
