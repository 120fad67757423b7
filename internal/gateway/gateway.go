package gateway

import (
	"context"
	"errors"

	"supportchat-ws/internal/domain"
)

var (
	// ErrNotParticipant marks an authorization failure: the user is not a
	// member of the conversation they addressed.
	ErrNotParticipant = errors.New("gateway: user is not a conversation participant")
	// ErrUnavailable marks a persistence failure (write error, timeout).
	ErrUnavailable = errors.New("gateway: persistence unavailable")
)

// Gateway is the boundary to the chat backend that owns users,
// conversations and the durable message log. The realtime layer persists
// through it before broadcasting and never touches storage directly.
type Gateway interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	CreateMessage(ctx context.Context, conversationID, senderID string, senderRole domain.Role, contentType domain.ContentType, body string) (*domain.Message, error)
	FindConversationsForUser(ctx context.Context, userID string) ([]string, error)
}
