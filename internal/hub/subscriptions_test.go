package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeIsIdempotent(t *testing.T) {
	idx := NewSubscriptionIndex()
	idx.Subscribe("user-a", "conv-1")
	idx.Subscribe("user-a", "conv-1")

	assert.Equal(t, []string{"user-a"}, idx.MembersOf("conv-1"))
	assert.Equal(t, 1, idx.Size())
}

func TestUnsubscribeDeletesEmptyEntries(t *testing.T) {
	idx := NewSubscriptionIndex()
	idx.Subscribe("user-a", "conv-1")
	idx.Subscribe("user-b", "conv-1")

	idx.Unsubscribe("user-a", "conv-1")
	assert.True(t, idx.Has("conv-1"))
	assert.Equal(t, []string{"user-b"}, idx.MembersOf("conv-1"))

	idx.Unsubscribe("user-b", "conv-1")
	assert.False(t, idx.Has("conv-1"), "emptied entry must be garbage collected")
	assert.Equal(t, 0, idx.Size())
}

func TestUnsubscribeUnknownConversationIsNoop(t *testing.T) {
	idx := NewSubscriptionIndex()
	idx.Unsubscribe("user-a", "conv-missing")
	assert.Equal(t, 0, idx.Size())
}

func TestMembersOfReturnsSnapshot(t *testing.T) {
	idx := NewSubscriptionIndex()
	idx.Subscribe("user-a", "conv-1")

	snapshot := idx.MembersOf("conv-1")
	idx.Subscribe("user-b", "conv-1")
	assert.Len(t, snapshot, 1, "snapshot must not observe later mutations")
	assert.Len(t, idx.MembersOf("conv-1"), 2)

	assert.Nil(t, idx.MembersOf("conv-unknown"))
}
