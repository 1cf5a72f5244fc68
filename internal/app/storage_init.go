package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/postgres"
)

// runtimeDependencies — хранилище с проверкой здоровья и функцией закрытия.
type runtimeDependencies struct {
	repo           domain.OrderRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает хранилище по драйверу из конфигурации.
// Для postgres при PostgresAutoMigrate схема приводится к последней версии.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		logger.Info("using in-memory order storage")
		return &runtimeDependencies{
			repo: memory.NewOrderRepository(),
			storageChecker: healthcheck.NewChecker("storage", func(context.Context) error {
				return nil
			}),
			closeFn: func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres storage requires a DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("migrate postgres schema: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}

		logger.Info("using postgres order storage")
		return &runtimeDependencies{
			repo:           postgres.NewOrderRepository(store),
			storageChecker: healthcheck.NewChecker("storage", store.Ping),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}
