package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/app"
	"github.com/vladislavdragonenkov/ordersvc/internal/version"
)

const (
	envGRPCAddr            = "ORDERS_GRPC_ADDR"
	envHTTPAddr            = "ORDERS_HTTP_ADDR"
	envStorageDriver       = "ORDERS_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERS_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERS_POSTGRES_AUTO_MIGRATE"
	envCatalogDriver       = "ORDERS_CATALOG_DRIVER"
	envKafkaBrokers        = "ORDERS_KAFKA_BROKERS"
	envCatalogRequestTopic = "ORDERS_CATALOG_REQUEST_TOPIC"
	envCatalogReplyTopic   = "ORDERS_CATALOG_REPLY_TOPIC"
	envCatalogTimeout      = "ORDERS_CATALOG_TIMEOUT"
	envCatalogMaxAttempts  = "ORDERS_CATALOG_MAX_ATTEMPTS"
	envCatalogProducts     = "ORDERS_CATALOG_PRODUCTS"
	envOTLPEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envLogLevel            = "ORDERS_LOG_LEVEL"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).Warnf("invalid %s, using info", envLogLevel)
			return
		}
		log.SetLevel(level)
	}
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения пропускаются с предупреждением.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	setString := func(key string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}

	setString(envGRPCAddr, &cfg.GRPCAddr)
	setString(envHTTPAddr, &cfg.HTTPAddr)
	setString(envPostgresDSN, &cfg.PostgresDSN)
	setString(envCatalogRequestTopic, &cfg.CatalogRequestTopic)
	setString(envCatalogReplyTopic, &cfg.CatalogReplyTopic)
	setString(envCatalogProducts, &cfg.CatalogProducts)
	setString(envOTLPEndpoint, &cfg.OTLPEndpoint)

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(envCatalogDriver); ok && strings.TrimSpace(v) != "" {
		cfg.CatalogDriver = strings.ToLower(strings.TrimSpace(v))
	}

	if v, ok := lookup(envKafkaBrokers); ok {
		var brokers []string
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
		if len(brokers) > 0 {
			cfg.KafkaBrokers = brokers
		}
	}

	if v, ok := lookup(envPostgresAutoMigrate); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envPostgresAutoMigrate, err))
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	if v, ok := lookup(envCatalogTimeout); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envCatalogTimeout, err))
		} else {
			cfg.CatalogTimeout = parsed
		}
	}

	if v, ok := lookup(envCatalogMaxAttempts); ok {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envCatalogMaxAttempts, err))
		} else {
			cfg.CatalogMaxAttempts = parsed
		}
	}

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, constraint string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, constraint)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, constraint string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, constraint)
	}
	return value, nil
}

func main() {
	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"http_addr":      cfg.HTTPAddr,
		"storage_driver": cfg.StorageDriver,
		"catalog_driver": cfg.CatalogDriver,
		"build":          version.String(),
	}).Info("запускаем OrdersService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("OrdersService остановлен")
}
