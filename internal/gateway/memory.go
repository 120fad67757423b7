package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"supportchat-ws/internal/domain"
)

// MemoryGateway is an in-process gateway used in tests and local
// development. Conversations and memberships are seeded up front;
// messages are appended to a bounded in-memory log.
type MemoryGateway struct {
	mu           sync.RWMutex
	participants map[string]map[string]struct{} // conversationID -> userIDs
	messages     map[string][]*domain.Message
	failWrites   bool
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		participants: make(map[string]map[string]struct{}),
		messages:     make(map[string][]*domain.Message),
	}
}

// AddParticipant seeds a conversation membership.
func (g *MemoryGateway) AddParticipant(conversationID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.participants[conversationID]; !ok {
		g.participants[conversationID] = make(map[string]struct{})
	}
	g.participants[conversationID][userID] = struct{}{}
}

// FailWrites makes every CreateMessage call return ErrUnavailable.
func (g *MemoryGateway) FailWrites(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWrites = fail
}

func (g *MemoryGateway) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members, ok := g.participants[conversationID]
	if !ok {
		return false, nil
	}
	_, ok = members[userID]
	return ok, nil
}

func (g *MemoryGateway) CreateMessage(_ context.Context, conversationID, senderID string, senderRole domain.Role, contentType domain.ContentType, body string) (*domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWrites {
		return nil, ErrUnavailable
	}
	members, ok := g.participants[conversationID]
	if !ok {
		return nil, ErrNotParticipant
	}
	if _, ok := members[senderID]; !ok {
		return nil, ErrNotParticipant
	}
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderRole:     senderRole,
		ContentType:    contentType,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	g.messages[conversationID] = append(g.messages[conversationID], msg)
	if n := len(g.messages[conversationID]); n > 1000 {
		g.messages[conversationID] = g.messages[conversationID][n-1000:]
	}
	return msg, nil
}

func (g *MemoryGateway) FindConversationsForUser(_ context.Context, userID string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var convs []string
	for convID, members := range g.participants {
		if _, ok := members[userID]; ok {
			convs = append(convs, convID)
		}
	}
	return convs, nil
}
