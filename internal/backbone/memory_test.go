package backbone

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, b Backbone) Event {
	t.Helper()
	select {
	case ev := <-b.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for backbone event")
		return Event{}
	}
}

func TestMemoryBrokerFanOutAcrossNodes(t *testing.T) {
	broker := NewMemoryBroker()
	a := broker.Node()
	b := broker.Node()
	defer a.Close()
	defer b.Close()

	_, err := a.Subscribe("conversation:c1")
	require.NoError(t, err)
	_, err = b.Subscribe("conversation:c1")
	require.NoError(t, err)

	require.NoError(t, a.Publish(context.Background(), "conversation:c1", []byte("hi")))

	// Both nodes receive, including the publisher, matching Redis pub/sub.
	assert.Equal(t, "hi", string(recvEvent(t, a).Payload))
	assert.Equal(t, "hi", string(recvEvent(t, b).Payload))
}

func TestMemoryBrokerFiltersByChannel(t *testing.T) {
	broker := NewMemoryBroker()
	node := broker.Node()
	defer node.Close()

	_, err := node.Subscribe("conversation:c1")
	require.NoError(t, err)

	require.NoError(t, node.Publish(context.Background(), "conversation:c2", []byte("other")))
	require.NoError(t, node.Publish(context.Background(), "conversation:c1", []byte("mine")))

	assert.Equal(t, "mine", string(recvEvent(t, node).Payload))
}

func TestSubscriptionCancelStopsDelivery(t *testing.T) {
	broker := NewMemoryBroker()
	node := broker.Node()
	defer node.Close()

	sub, err := node.Subscribe("conversation:c1")
	require.NoError(t, err)
	require.NoError(t, sub.Cancel())
	require.NoError(t, sub.Cancel()) // idempotent

	require.NoError(t, node.Publish(context.Background(), "conversation:c1", []byte("hi")))
	select {
	case ev := <-node.Events():
		t.Fatalf("unexpected event after cancel: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionRefcounting(t *testing.T) {
	broker := NewMemoryBroker()
	node := broker.Node()
	defer node.Close()

	s1, err := node.Subscribe("conversation:c1")
	require.NoError(t, err)
	s2, err := node.Subscribe("conversation:c1")
	require.NoError(t, err)

	require.NoError(t, s1.Cancel())
	require.NoError(t, node.Publish(context.Background(), "conversation:c1", []byte("still")))
	assert.Equal(t, "still", string(recvEvent(t, node).Payload))

	require.NoError(t, s2.Cancel())
	require.NoError(t, node.Publish(context.Background(), "conversation:c1", []byte("gone")))
	select {
	case <-node.Events():
		t.Fatal("event delivered after last subscription cancelled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnectedTracksClose(t *testing.T) {
	broker := NewMemoryBroker()
	node := broker.Node()

	assert.True(t, node.Connected(context.Background()))
	require.NoError(t, node.Close())
	assert.False(t, node.Connected(context.Background()))
}

func TestPublishAfterCloseFails(t *testing.T) {
	broker := NewMemoryBroker()
	node := broker.Node()
	require.NoError(t, node.Close())

	err := node.Publish(context.Background(), "conversation:c1", []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConversationChannelRoundTrip(t *testing.T) {
	ch := ConversationChannel("conv-1")
	assert.Equal(t, "conversation:conv-1", ch)

	id, ok := ConversationFromChannel(ch)
	require.True(t, ok)
	assert.Equal(t, "conv-1", id)

	_, ok = ConversationFromChannel(TypingChannel)
	assert.False(t, ok)
}
