package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"supportchat-ws/internal/domain"
)

// Store keeps per-conversation online membership in Redis hashes so any
// process (or service) can answer presence queries for a conversation.
// Key layout: conversation:{id}:members -> hash of userID -> meta JSON.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

type memberMeta struct {
	UserID   string      `json:"userId"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

func membersKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:members", conversationID)
}

func (s *Store) AddMember(ctx context.Context, conversationID, userID string, role domain.Role) error {
	meta, err := json.Marshal(memberMeta{UserID: userID, Role: role, JoinedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, membersKey(conversationID), userID, meta).Err()
}

func (s *Store) RemoveMember(ctx context.Context, conversationID, userID string) error {
	return s.client.HDel(ctx, membersKey(conversationID), userID).Err()
}

// ConversationMembers returns the online members of a conversation with
// per-role counts.
func (s *Store) ConversationMembers(ctx context.Context, conversationID string) (map[string]interface{}, error) {
	raw, err := s.client.HGetAll(ctx, membersKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}

	members := make(map[string]interface{}, len(raw))
	customers, agents := 0, 0
	for userID, metaJSON := range raw {
		var meta memberMeta
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			continue
		}
		switch meta.Role {
		case domain.RoleCustomer:
			customers++
		case domain.RoleAgent:
			agents++
		}
		members[userID] = meta
	}

	return map[string]interface{}{
		"members":           members,
		"customerConnected": customers > 0,
		"agentConnected":    agents > 0,
		"totalCustomers":    customers,
		"totalAgents":       agents,
	}, nil
}
