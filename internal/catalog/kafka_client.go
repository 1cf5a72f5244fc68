package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

// CommandValidateProducts — команда удалённого каталога для проверки товаров.
const CommandValidateProducts = "validate_products"

// DefaultTimeout ограничивает ожидание ответа каталога.
const DefaultTimeout = 5 * time.Second

// Requester отправляет команду и ждёт единственный ответ.
type Requester interface {
	Request(ctx context.Context, topic, command string, payload []byte) ([]byte, error)
	Ready() bool
}

// RemoteError — ошибка, которую вернул сам каталог.
type RemoteError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("catalog replied with error %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error { return domain.ErrCatalogMalformedReply }

type validateReply struct {
	Products *[]domain.Product `json:"products"`
	Error    *RemoteError      `json:"error,omitempty"`
}

// KafkaClient обращается к каталогу через Kafka request/reply.
type KafkaClient struct {
	requester Requester
	topic     string
	timeout   time.Duration
	logger    *log.Entry
}

// NewKafkaClient создаёт клиента; topic и timeout по умолчанию берутся из констант пакета kafka и DefaultTimeout.
func NewKafkaClient(requester Requester, topic string, timeout time.Duration, logger *log.Entry) *KafkaClient {
	if topic == "" {
		topic = kafka.TopicValidateProductsRequest
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "catalog-kafka")
	}
	return &KafkaClient{
		requester: requester,
		topic:     topic,
		timeout:   timeout,
		logger:    logger,
	}
}

// Validate запрашивает товары по идентификаторам.
func (c *KafkaClient) Validate(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode validate request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.requester.Request(callCtx, c.topic, CommandValidateProducts, payload)
	if err != nil {
		c.logger.WithError(err).WithField("ids", len(ids)).Warn("catalog request failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	return decodeValidateReply(raw)
}

// Ready сообщает, что канал ответов готов.
func (c *KafkaClient) Ready() bool {
	return c.requester.Ready()
}

func decodeValidateReply(raw []byte) ([]domain.Product, error) {
	var products []domain.Product
	var reply validateReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		// Каталог может ответить голым массивом товаров.
		if arrErr := json.Unmarshal(raw, &products); arrErr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCatalogMalformedReply, err)
		}
	} else {
		if reply.Error != nil {
			return nil, reply.Error
		}
		if reply.Products == nil {
			return nil, fmt.Errorf("%w: reply has neither products nor error", domain.ErrCatalogMalformedReply)
		}
		products = *reply.Products
	}
	for _, product := range products {
		if product.ID == "" {
			return nil, fmt.Errorf("%w: product without id", domain.ErrCatalogMalformedReply)
		}
	}
	return products, nil
}

// ReplyHandler передаёт ответы каталога в RequestReply и учитывает ответы без ожидающего запроса.
func ReplyHandler(rr *kafka.RequestReply, m *metrics.CatalogMetrics, logger *log.Entry) kafka.MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "catalog-replies")
	}
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		err := rr.HandleReply(ctx, message)
		if errors.Is(err, kafka.ErrUnknownCorrelationID) || errors.Is(err, kafka.ErrMissingCorrelationID) {
			m.RecordUnmatchedReply()
			logger.WithError(err).Debug("dropping catalog reply")
			return nil
		}
		return err
	}
}
