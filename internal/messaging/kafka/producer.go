package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer публикует сообщения и ждёт подтверждения всех реплик.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducer создаёт идемпотентный sync producer.
func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = "orders-service"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 5
	config.Producer.Idempotent = true
	config.Producer.Compression = sarama.CompressionSnappy
	// Идемпотентный producer требует не больше одного запроса в полёте.
	config.Net.MaxOpenRequests = 1

	sync, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(sync, log.WithField("component", "kafka-producer")), nil
}

func newProducer(sync sarama.SyncProducer, logger *log.Entry) *Producer {
	return &Producer{sync: sync, logger: logger}
}

// Send публикует сообщение. Key задаёт партицию, пустой Key отдаёт выбор партиционеру.
func (p *Producer) Send(message Message) error {
	record := &sarama.ProducerMessage{
		Topic:   message.Topic,
		Value:   sarama.ByteEncoder(message.Value),
		Headers: recordHeaders(message.Headers),
	}
	if message.Key != "" {
		record.Key = sarama.StringEncoder(message.Key)
	}

	partition, offset, err := p.sync.SendMessage(record)
	if err != nil {
		return fmt.Errorf("send to %s: %w", message.Topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     message.Topic,
		"key":       message.Key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent")
	return nil
}

// Close сбрасывает буферы и закрывает соединения с брокерами.
func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
