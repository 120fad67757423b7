package backbone

import (
	"context"
	"errors"
	"sync"
)

// Channel naming: one channel per conversation plus two globals.
const (
	TypingChannel   = "chat:typing"
	PresenceChannel = "chat:presence"

	conversationPrefix = "conversation:"
)

// ConversationChannel returns the pub/sub channel for a conversation.
func ConversationChannel(conversationID string) string {
	return conversationPrefix + conversationID
}

// ConversationFromChannel is the inverse of ConversationChannel. The
// second return is false for non-conversation channels.
func ConversationFromChannel(channel string) (string, bool) {
	if len(channel) <= len(conversationPrefix) || channel[:len(conversationPrefix)] != conversationPrefix {
		return "", false
	}
	return channel[len(conversationPrefix):], true
}

var ErrClosed = errors.New("backbone: closed")

// Event is a raw payload received from a subscribed channel.
type Event struct {
	Channel string
	Payload []byte
}

// Backbone is the cross-process broadcast transport. All subscribed
// channels feed one merged stream returned by Events, so consumers run a
// single demultiplexing loop keyed by channel instead of registering a
// closure per channel.
type Backbone interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(channel string) (*Subscription, error)
	Events() <-chan Event
	// Connected reports current reachability of the transport, not just
	// that it was reachable at construction time.
	Connected(ctx context.Context) bool
	Close() error
}

// Subscription is a cancellable handle for one channel subscription.
type Subscription struct {
	Channel string

	once   sync.Once
	cancel func() error
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() error {
	var err error
	s.once.Do(func() {
		if s.cancel != nil {
			err = s.cancel()
		}
	})
	return err
}

func newSubscription(channel string, cancel func() error) *Subscription {
	return &Subscription{Channel: channel, cancel: cancel}
}
