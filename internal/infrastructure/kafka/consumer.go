package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"supportchat-ws/internal/domain"
)

// EventHandler receives platform events ingested from Kafka, typically
// chat messages created through the REST API that still need realtime
// delivery.
type EventHandler interface {
	HandleMessageEvent(ev domain.MessageEvent)
	HandleTypingEvent(ev domain.TypingEvent)
	HandlePresenceEvent(ev domain.PresenceEvent)
}

type Consumer struct {
	readers []*kafka.Reader
	handler EventHandler
	log     *zap.Logger
}

func NewConsumer(brokers []string, groupID string, handler EventHandler, log *zap.Logger) *Consumer {
	topics := []string{TopicMessages, TopicTyping, TopicPresence}
	readers := make([]*kafka.Reader, 0, len(topics))
	for _, topic := range topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 100 * time.Millisecond,
			StartOffset:    kafka.LastOffset,
			MaxWait:        100 * time.Millisecond,
		}))
	}
	return &Consumer{readers: readers, handler: handler, log: log}
}

// Start launches one consuming goroutine per topic. Read errors are
// logged and retried; the loops exit on context cancellation.
func (c *Consumer) Start(ctx context.Context) {
	for _, reader := range c.readers {
		go c.consume(ctx, reader)
	}
}

func (c *Consumer) consume(ctx context.Context, reader *kafka.Reader) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("recovered from panic in kafka consumer", zap.Any("panic", r))
		}
	}()

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka read failed", zap.Error(err))
			continue
		}
		c.dispatch(m.Topic, m.Value)
	}
}

func (c *Consumer) dispatch(topic string, value []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("recovered from panic in kafka dispatch",
				zap.String("topic", topic), zap.Any("panic", r))
		}
	}()

	switch topic {
	case TopicMessages:
		var ev domain.MessageEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			c.log.Warn("malformed kafka message event", zap.Error(err))
			return
		}
		c.handler.HandleMessageEvent(ev)
	case TopicTyping:
		var ev domain.TypingEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			c.log.Warn("malformed kafka typing event", zap.Error(err))
			return
		}
		c.handler.HandleTypingEvent(ev)
	case TopicPresence:
		var ev domain.PresenceEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			c.log.Warn("malformed kafka presence event", zap.Error(err))
			return
		}
		c.handler.HandlePresenceEvent(ev)
	default:
		c.log.Warn("kafka event on unknown topic", zap.String("topic", topic))
	}
}

func (c *Consumer) Close() error {
	var firstErr error
	for _, reader := range c.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
