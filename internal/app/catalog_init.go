package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/catalog"
	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

// catalogClient — каталог товаров вместе с его жизненным циклом.
type catalogClient struct {
	catalog domain.ProductCatalog
	ready   func() bool
	closeFn func()
}

// initCatalog собирает каталог: базовый клиент, метрики и повторы.
func initCatalog(ctx context.Context, cfg Config, m *metrics.CatalogMetrics, logger *log.Entry) (*catalogClient, error) {
	var (
		base    domain.ProductCatalog
		closeFn = func() {}
	)

	switch strings.ToLower(strings.TrimSpace(cfg.CatalogDriver)) {
	case "", CatalogDriverStatic:
		products, err := catalog.ParseProducts(cfg.CatalogProducts)
		if err != nil {
			return nil, err
		}
		logger.WithField("products", len(products)).Info("using static product catalog")
		base = catalog.NewStatic(products...)

	case CatalogDriverKafka:
		client, closeKafka, err := initKafkaCatalog(ctx, cfg, m, logger)
		if err != nil {
			return nil, err
		}
		base, closeFn = client, closeKafka

	default:
		return nil, fmt.Errorf("unsupported catalog driver: %q", cfg.CatalogDriver)
	}

	retry := catalog.DefaultRetryConfig()
	retry.MaxAttempts = cfg.CatalogMaxAttempts

	wrapped := catalog.NewRetrying(
		catalog.NewInstrumented(base, m),
		retry,
		logger.WithField("layer", "catalog-retry"),
	)
	return &catalogClient{
		catalog: wrapped,
		ready:   wrapped.Ready,
		closeFn: closeFn,
	}, nil
}

// initKafkaCatalog поднимает request/reply канал: producer запросов и consumer ответов
// с собственной consumer group, чтобы каждый экземпляр получал все ответы.
func initKafkaCatalog(ctx context.Context, cfg Config, m *metrics.CatalogMetrics, logger *log.Entry) (*catalog.KafkaClient, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil, errors.New("kafka catalog requires brokers")
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		return nil, nil, err
	}

	var replies kafka.MessageHandler
	groupID := "orders-catalog-replies-" + uuid.NewString()
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, groupID, []string{cfg.CatalogReplyTopic},
		func(ctx context.Context, message *sarama.ConsumerMessage) error {
			return replies(ctx, message)
		})
	if err != nil {
		closeKafkaProducer(producer, logger)
		return nil, nil, err
	}

	rr := kafka.NewRequestReply(producer, cfg.CatalogReplyTopic, consumer.Ready())
	replies = catalog.ReplyHandler(rr, m, logger.WithField("layer", "catalog-replies"))

	consumerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := consumer.Start(consumerCtx); err != nil {
		cancel()
		closeKafkaProducer(producer, logger)
		return nil, nil, err
	}

	logger.WithFields(log.Fields{
		"brokers":       cfg.KafkaBrokers,
		"request_topic": cfg.CatalogRequestTopic,
		"reply_topic":   cfg.CatalogReplyTopic,
		"group_id":      groupID,
	}).Info("kafka product catalog initialized")

	closeFn := func() {
		rr.Close()
		cancel()
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop catalog reply consumer")
		}
		closeKafkaProducer(producer, logger)
	}

	client := catalog.NewKafkaClient(rr, cfg.CatalogRequestTopic, cfg.CatalogTimeout, logger.WithField("layer", "catalog-kafka"))
	return client, closeFn, nil
}

// closeKafkaProducer закрывает producer, если он создан.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
