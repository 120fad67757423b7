package domain

import "time"

// ContentType of a chat message body.
type ContentType string

const (
	ContentText  ContentType = "TEXT"
	ContentImage ContentType = "IMAGE"
	ContentFile  ContentType = "FILE"
)

// Message is the canonical stored record returned by the persistence
// gateway. The realtime layer never writes these itself; it only relays
// what the gateway stored.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	SenderRole     Role        `json:"senderRole"`
	ContentType    ContentType `json:"contentType"`
	Body           string      `json:"body"`
	CreatedAt      time.Time   `json:"createdAt"`
}
