package kafka

import "github.com/IBM/sarama"

// Топики request/reply канала каталога товаров.
const (
	TopicValidateProductsRequest = "products.validate.request"
	TopicProductsReply           = "orders.products.reply"
)

// Заголовки request/reply сообщений.
const (
	HeaderCommand       = "x-command"
	HeaderCorrelationID = "x-correlation-id"
	HeaderReplyTo       = "x-reply-to"
)

// Message — исходящее сообщение с произвольными заголовками.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// HeaderValue возвращает значение заголовка сообщения или пустую строку.
func HeaderValue(message *sarama.ConsumerMessage, key string) string {
	if message == nil {
		return ""
	}
	for _, header := range message.Headers {
		if header != nil && string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}

func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	result := make([]sarama.RecordHeader, 0, len(headers))
	for key, value := range headers {
		result = append(result, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}
	return result
}
