package app

import (
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/catalog"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
)

// Драйверы хранилища заказов.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Драйверы каталога товаров.
const (
	CatalogDriverStatic = "static"
	CatalogDriverKafka  = "kafka"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr string
	// HTTPAddr обслуживает /metrics, health-пробы и HTTP API заказов.
	HTTPAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	CatalogDriver       string
	KafkaBrokers        []string
	CatalogRequestTopic string
	CatalogReplyTopic   string
	// CatalogTimeout ограничивает ожидание одного ответа каталога.
	CatalogTimeout     time.Duration
	CatalogMaxAttempts int
	// CatalogProducts — JSON-массив товаров для статического каталога.
	CatalogProducts string

	// OTLPEndpoint задаёт адрес OpenTelemetry collector. Пустое значение отключает экспорт спанов.
	OTLPEndpoint string
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		HTTPAddr:            ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CatalogDriver:       CatalogDriverStatic,
		CatalogRequestTopic: kafka.TopicValidateProductsRequest,
		CatalogReplyTopic:   kafka.TopicProductsReply,
		CatalogTimeout:      catalog.DefaultTimeout,
		CatalogMaxAttempts:  catalog.DefaultRetryConfig().MaxAttempts,
	}
}
