package domain

import "time"

// Events carried over the broadcast backbone and the Kafka bridge.
// They are transient: published after the underlying state change has
// already been made durable, and never persisted by the realtime layer.

// MessageEvent announces a stored chat message to every gateway process.
type MessageEvent struct {
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Message        Message   `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// TypingEvent announces that a user started or stopped typing in a
// conversation. Delivery is filtered by conversation membership.
type TypingEvent struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	Role           Role      `json:"role"`
	IsTyping       bool      `json:"isTyping"`
	Timestamp      time.Time `json:"timestamp"`
}

// Presence statuses.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// PresenceEvent announces a user going online or offline. Presence is
// global: it is fanned out to every connection with no conversation
// scoping and no sender exclusion.
type PresenceEvent struct {
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
