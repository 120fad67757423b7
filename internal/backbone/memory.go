package backbone

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process pub/sub transport. Each Node behaves
// like one gateway process attached to the same backbone, which is how
// the tests exercise cross-process fan-out without Redis.
type MemoryBroker struct {
	mu    sync.RWMutex
	nodes map[*MemoryBackbone]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{nodes: make(map[*MemoryBackbone]struct{})}
}

// Node attaches a new backbone endpoint to the broker.
func (br *MemoryBroker) Node() *MemoryBackbone {
	b := &MemoryBackbone{
		broker:   br,
		events:   make(chan Event, 256),
		channels: make(map[string]int),
	}
	br.mu.Lock()
	br.nodes[b] = struct{}{}
	br.mu.Unlock()
	return b
}

func (br *MemoryBroker) publish(channel string, payload []byte) {
	br.mu.RLock()
	defer br.mu.RUnlock()
	for node := range br.nodes {
		node.deliver(channel, payload)
	}
}

func (br *MemoryBroker) detach(b *MemoryBackbone) {
	br.mu.Lock()
	delete(br.nodes, b)
	br.mu.Unlock()
}

// MemoryBackbone is one endpoint of a MemoryBroker. Like the Redis
// implementation, the publisher's own subscriptions receive what it
// publishes.
type MemoryBackbone struct {
	broker *MemoryBroker
	events chan Event

	mu       sync.Mutex
	channels map[string]int // refcounted per channel
	closed   bool
}

func (b *MemoryBackbone) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	b.broker.publish(channel, payload)
	return nil
}

func (b *MemoryBackbone) Subscribe(channel string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.channels[channel]++
	return newSubscription(channel, func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.channels[channel] > 0 {
			b.channels[channel]--
			if b.channels[channel] == 0 {
				delete(b.channels, channel)
			}
		}
		return nil
	}), nil
}

func (b *MemoryBackbone) Events() <-chan Event {
	return b.events
}

func (b *MemoryBackbone) Connected(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

func (b *MemoryBackbone) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	b.broker.detach(b)
	close(b.events)
	return nil
}

func (b *MemoryBackbone) deliver(channel string, payload []byte) {
	b.mu.Lock()
	subscribed := !b.closed && b.channels[channel] > 0
	b.mu.Unlock()
	if !subscribed {
		return
	}
	select {
	case b.events <- Event{Channel: channel, Payload: payload}:
	default:
	}
}
