package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"supportchat-ws/internal/domain"
)

// ConnectionInfo is the per-connection summary exposed by the stats
// endpoint.
type ConnectionInfo struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	Role          domain.Role `json:"role"`
	Conversations int         `json:"conversations"`
	LastSeen      time.Time   `json:"lastSeen"`
	Alive         bool        `json:"alive"`
}

// Registry owns every live connection on this process and drives the
// Subscription Index on admit and evict.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	index *SubscriptionIndex
}

func NewRegistry(index *SubscriptionIndex) *Registry {
	return &Registry{
		conns: make(map[string]*connection),
		index: index,
	}
}

// Admit registers a connection under a fresh identifier. A user may hold
// several connections at once, so the key is never the userID.
// newChannels lists conversations that previously had no local
// connection; the hub uses it to open backbone subscriptions.
func (r *Registry) Admit(sock Socket, identity domain.Identity, conversations []string) (connID string, newChannels []string, err error) {
	if sock == nil {
		return "", nil, ErrSocketClosed
	}
	c := &connection{
		id:       uuid.New().String(),
		identity: identity,
		sock:     sock,
		convs:    make(map[string]struct{}, len(conversations)),
		lastSeen: time.Now(),
		alive:    true,
	}
	for _, conv := range conversations {
		c.convs[conv] = struct{}{}
	}

	r.mu.Lock()
	for conv := range c.convs {
		if !r.index.Has(conv) {
			newChannels = append(newChannels, conv)
		}
		r.index.Subscribe(identity.UserID, conv)
	}
	r.conns[c.id] = c
	r.mu.Unlock()

	return c.id, newChannels, nil
}

// Touch refreshes last-seen and marks the connection alive. Called on
// every inbound frame and on heartbeat response.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		c.lastSeen = time.Now()
		c.alive = true
	}
}

// Evict removes the connection, closes its socket, and unsubscribes its
// user from every conversation where no other connection of the same
// user remains. userReleased lists the conversations the user actually
// left; releasedChannels lists conversations left with no local
// connection at all.
func (r *Registry) Evict(connID string) (evicted *connection, userReleased, releasedChannels []string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return nil, nil, nil
	}
	delete(r.conns, connID)
	for conv := range c.convs {
		if !r.userSubscribedLocked(c.identity.UserID, conv) {
			r.index.Unsubscribe(c.identity.UserID, conv)
			userReleased = append(userReleased, conv)
		}
		if !r.index.Has(conv) {
			releasedChannels = append(releasedChannels, conv)
		}
	}
	r.mu.Unlock()

	c.markClosed()
	return c, userReleased, releasedChannels
}

// userSubscribedLocked reports whether a still-registered connection of
// the user is subscribed to the conversation.
func (r *Registry) userSubscribedLocked(userID, conversationID string) bool {
	for _, other := range r.conns {
		if other.identity.UserID != userID {
			continue
		}
		if _, ok := other.convs[conversationID]; ok {
			return true
		}
	}
	return false
}

func (r *Registry) get(connID string) (*connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// ForEachInConversation calls fn for every live connection subscribed to
// the conversation. The connection set is snapshotted first, so fn runs
// without the registry lock and concurrent evictions are tolerated;
// connections closed mid-iteration are skipped.
func (r *Registry) ForEachInConversation(conversationID string, fn func(c *connection)) {
	r.mu.RLock()
	targets := make([]*connection, 0, 4)
	for _, c := range r.conns {
		if _, ok := c.convs[conversationID]; ok {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if c.isClosed() {
			continue
		}
		fn(c)
	}
}

// ForEach calls fn for every live connection regardless of conversation.
// Used for global presence fan-out.
func (r *Registry) ForEach(fn func(c *connection)) {
	r.mu.RLock()
	targets := make([]*connection, 0, len(r.conns))
	for _, c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if c.isClosed() {
			continue
		}
		fn(c)
	}
}

// UserHasConnections reports whether any connection of the user remains
// registered on this process.
func (r *Registry) UserHasConnections(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c.identity.UserID == userID {
			return true
		}
	}
	return false
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns per-connection summaries for diagnostics.
func (r *Registry) Snapshot() []ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnectionInfo, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, ConnectionInfo{
			ID:            c.id,
			UserID:        c.identity.UserID,
			Role:          c.identity.Role,
			Conversations: len(c.convs),
			LastSeen:      c.lastSeen,
			Alive:         c.alive,
		})
	}
	return out
}

// beginSweep implements one liveness round: connections that missed the
// previous probe are returned as dead, everyone else is flagged for the
// next round and returned for probing.
func (r *Registry) beginSweep() (dead []string, probe []*connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conns {
		if !c.alive {
			dead = append(dead, id)
			continue
		}
		c.alive = false
		probe = append(probe, c)
	}
	return dead, probe
}

// connIDs returns the identifiers of every registered connection.
func (r *Registry) connIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
