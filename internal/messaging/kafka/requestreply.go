package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	// ErrReplyChannelNotReady — consumer ответов ещё не получил партиции.
	ErrReplyChannelNotReady = errors.New("reply channel is not ready")
	// ErrRequestReplyClosed — канал закрыт, новые запросы не принимаются.
	ErrRequestReplyClosed = errors.New("request/reply channel closed")
	// ErrMissingCorrelationID — в ответе нет заголовка x-correlation-id.
	ErrMissingCorrelationID = errors.New("reply without correlation id")
	// ErrUnknownCorrelationID — ответ не соответствует ни одному ожидающему запросу.
	ErrUnknownCorrelationID = errors.New("reply for unknown correlation id")
)

// Sender отправляет сообщение в брокер.
type Sender interface {
	Send(message Message) error
}

// RequestReply реализует асинхронный запрос с ответом поверх двух топиков.
// Запросы уходят через Sender, ответы приходят в HandleReply и сопоставляются по correlation id.
type RequestReply struct {
	sender     Sender
	replyTopic string
	ready      <-chan struct{}
	logger     *log.Entry

	mu      sync.Mutex
	pending map[string]chan []byte

	closeOnce sync.Once
	closed    chan struct{}

	newID func() string
}

// NewRequestReply создаёт канал. ready закрывается, когда consumer ответов готов;
// nil означает, что канал готов сразу.
func NewRequestReply(sender Sender, replyTopic string, ready <-chan struct{}) *RequestReply {
	if ready == nil {
		ch := make(chan struct{})
		close(ch)
		ready = ch
	}
	return &RequestReply{
		sender:     sender,
		replyTopic: replyTopic,
		ready:      ready,
		logger:     log.WithField("component", "kafka-request-reply"),
		pending:    make(map[string]chan []byte),
		closed:     make(chan struct{}),
		newID:      func() string { return uuid.NewString() },
	}
}

// Request отправляет команду и ждёт ответ до отмены ctx.
func (r *RequestReply) Request(ctx context.Context, topic, command string, payload []byte) ([]byte, error) {
	select {
	case <-r.closed:
		return nil, ErrRequestReplyClosed
	default:
	}

	select {
	case <-r.ready:
	case <-r.closed:
		return nil, ErrRequestReplyClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrReplyChannelNotReady, ctx.Err())
	}

	correlationID := r.newID()
	replyCh := make(chan []byte, 1)

	r.mu.Lock()
	r.pending[correlationID] = replyCh
	r.mu.Unlock()
	defer r.forget(correlationID)

	headers := map[string]string{
		HeaderCommand:       command,
		HeaderCorrelationID: correlationID,
		HeaderReplyTo:       r.replyTopic,
	}
	// Контекст трассировки уходит вместе с запросом в заголовках traceparent/baggage.
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	err := r.sender.Send(Message{
		Topic:   topic,
		Key:     correlationID,
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", command, err)
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-r.closed:
		return nil, ErrRequestReplyClosed
	case <-ctx.Done():
		r.logger.WithFields(log.Fields{
			"command":        command,
			"correlation_id": correlationID,
		}).Warn("request timed out waiting for reply")
		return nil, ctx.Err()
	}
}

// HandleReply передаёт ответ ожидающему запросу. Подходит как MessageHandler для Consumer.
func (r *RequestReply) HandleReply(_ context.Context, message *sarama.ConsumerMessage) error {
	correlationID := HeaderValue(message, HeaderCorrelationID)
	if correlationID == "" {
		return ErrMissingCorrelationID
	}

	r.mu.Lock()
	replyCh, ok := r.pending[correlationID]
	if ok {
		delete(r.pending, correlationID)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCorrelationID, correlationID)
	}

	value := make([]byte, len(message.Value))
	copy(value, message.Value)
	replyCh <- value
	return nil
}

// Pending возвращает количество запросов, ожидающих ответа.
func (r *RequestReply) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Ready сообщает, готов ли канал принимать ответы.
func (r *RequestReply) Ready() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// Close завершает все ожидающие запросы с ErrRequestReplyClosed.
func (r *RequestReply) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
}

func (r *RequestReply) forget(correlationID string) {
	r.mu.Lock()
	delete(r.pending, correlationID)
	r.mu.Unlock()
}
