package hub

import "sync"

// SubscriptionIndex maps conversationID to the set of userIDs with at
// least one live local connection subscribed to it. Entries are created
// lazily and removed once their member set empties. The Connection
// Registry is the sole writer.
type SubscriptionIndex struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
}

func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{members: make(map[string]map[string]struct{})}
}

// Subscribe adds the user to the conversation's member set. Idempotent.
func (s *SubscriptionIndex) Subscribe(userID, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[conversationID]
	if !ok {
		set = make(map[string]struct{})
		s.members[conversationID] = set
	}
	set[userID] = struct{}{}
}

// Unsubscribe removes the user; an emptied member set is deleted so
// stale conversations do not accumulate.
func (s *SubscriptionIndex) Unsubscribe(userID, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[conversationID]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(s.members, conversationID)
	}
}

// MembersOf returns a snapshot of the conversation's member set.
func (s *SubscriptionIndex) MembersOf(conversationID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.members[conversationID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for userID := range set {
		out = append(out, userID)
	}
	return out
}

// Has reports whether any local user is subscribed to the conversation.
func (s *SubscriptionIndex) Has(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[conversationID]
	return ok
}

// Size returns the number of conversations currently tracked.
func (s *SubscriptionIndex) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}
