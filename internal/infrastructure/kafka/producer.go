package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"supportchat-ws/internal/domain"
)

// Topics shared with the rest of the platform.
const (
	TopicMessages = "chat-messages"
	TopicTyping   = "typing-indicators"
	TopicPresence = "presence-updates"
)

// Producer exports realtime events to Kafka for downstream services.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
		// Low latency over batching: realtime events go out immediately.
		BatchSize:    1,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Producer{writer: writer}
}

// Export implements hub.EventExporter. The topic is picked from the
// event type.
func (p *Producer) Export(ctx context.Context, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic: topicFor(event),
		Value: data,
	}
	return p.writer.WriteMessages(ctx, msg)
}

func topicFor(event interface{}) string {
	switch event.(type) {
	case domain.MessageEvent:
		return TopicMessages
	case domain.TypingEvent:
		return TopicTyping
	case domain.PresenceEvent:
		return TopicPresence
	default:
		return TopicMessages
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
