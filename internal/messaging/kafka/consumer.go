package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// consumeRetryDelay отделяет повторный Consume после ошибки группы.
const consumeRetryDelay = time.Second

// MessageHandler обрабатывает одно сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer читает топики через consumer group и передаёт сообщения обработчику.
// Сообщения не переигрываются: offset фиксируется даже при ошибке обработчика.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler *groupHandler
	logger  *log.Entry

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// NewConsumer создаёт consumer, читающий только новые сообщения.
func NewConsumer(brokers []string, groupID string, topics []string, handle MessageHandler) (*Consumer, error) {
	config := sarama.NewConfig()
	config.ClientID = "orders-service"
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group %s: %w", groupID, err)
	}

	logger := log.WithFields(log.Fields{"component": "kafka-consumer", "group": groupID})
	return newConsumer(group, topics, handle, logger), nil
}

func newConsumer(group sarama.ConsumerGroup, topics []string, handle MessageHandler, logger *log.Entry) *Consumer {
	return &Consumer{
		group:   group,
		topics:  topics,
		handler: &groupHandler{handle: handle, logger: logger, ready: make(chan struct{})},
		logger:  logger,
	}
}

// Ready закрывается, когда группа впервые получила партиции.
func (c *Consumer) Ready() <-chan struct{} {
	return c.handler.ready
}

// Start запускает чтение в фоне. Чтение продолжается до отмены ctx или вызова Stop.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Warn("consumer group error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// consumeLoop перезапускает Consume после каждого rebalance.
func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		err := c.group.Consume(ctx, c.topics, c.handler)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			continue
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return
		}

		c.logger.WithError(err).Error("consume failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(consumeRetryDelay):
		}
	}
}

// Stop закрывает группу и ждёт фоновые горутины. Повторный вызов возвращает тот же результат.
func (c *Consumer) Stop() error {
	c.stopOnce.Do(func() {
		if err := c.group.Close(); err != nil {
			c.stopErr = fmt.Errorf("close kafka consumer group: %w", err)
			return
		}
		c.wg.Wait()
		c.logger.Info("kafka consumer stopped")
	})
	return c.stopErr
}

// groupHandler связывает сессию sarama с MessageHandler.
type groupHandler struct {
	handle    MessageHandler
	logger    *log.Entry
	ready     chan struct{}
	readyOnce sync.Once
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.readyOnce.Do(func() { close(h.ready) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handle(session.Context(), message); err != nil {
				h.logger.WithError(err).WithFields(log.Fields{
					"topic":     message.Topic,
					"partition": message.Partition,
					"offset":    message.Offset,
				}).Warn("message handler failed")
			}
			session.MarkMessage(message, "")
		}
	}
}
