package backbone

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisBackbone carries events between gateway processes over Redis
// pub/sub. One PubSub connection serves every channel; its messages are
// pumped into the merged event stream.
type RedisBackbone struct {
	client *redis.Client
	pubsub *redis.PubSub
	events chan Event
	log    *zap.Logger

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

// NewRedisBackbone pings Redis and starts the receive pump. An error
// here means the backbone is unreachable; the caller is expected to fall
// back to local-only broadcast rather than abort startup.
func NewRedisBackbone(client *redis.Client, log *zap.Logger) (*RedisBackbone, error) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := client.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, err
	}

	b := &RedisBackbone{
		client: client,
		pubsub: client.Subscribe(ctx),
		events: make(chan Event, 256),
		log:    log,
		cancel: cancel,
	}
	go b.pump(ctx)
	return b, nil
}

func (b *RedisBackbone) pump(ctx context.Context) {
	defer close(b.events)
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case b.events <- Event{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			default:
				// Consumer is behind. At-least-once with a full buffer
				// means dropping, not blocking the pubsub reader.
				b.log.Warn("backbone event dropped, buffer full",
					zap.String("channel", msg.Channel))
			}
		}
	}
}

func (b *RedisBackbone) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBackbone) Subscribe(channel string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if err := b.pubsub.Subscribe(context.Background(), channel); err != nil {
		return nil, err
	}
	return newSubscription(channel, func() error {
		return b.pubsub.Unsubscribe(context.Background(), channel)
	}), nil
}

func (b *RedisBackbone) Events() <-chan Event {
	return b.events
}

func (b *RedisBackbone) Connected(ctx context.Context) bool {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return false
	}
	return b.client.Ping(ctx).Err() == nil
}

func (b *RedisBackbone) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.cancel()
	return b.pubsub.Close()
}
