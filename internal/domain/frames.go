package domain

import "time"

// Client frame types.
const (
	FrameChatMessage = "chat_message"
	FrameTypingStart = "typing_start"
	FrameTypingStop  = "typing_stop"
	FramePing        = "ping"
)

// Server frame types.
const (
	FrameWelcome         = "welcome"
	FrameMessageSent     = "message_sent"
	FrameMessageReceived = "message_received"
	FrameTypingIndicator = "typing_indicator"
	FramePresenceUpdate  = "presence_update"
	FrameError           = "error"
	FramePong            = "pong"
)

// ClientFrame is an inbound WebSocket frame sent by a client.
type ClientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	Body           string `json:"body,omitempty"`
	ContentType    string `json:"contentType,omitempty"`
}

// ServerFrame is an outbound WebSocket frame sent to a client.
type ServerFrame struct {
	Type           string      `json:"type"`
	Data           interface{} `json:"data,omitempty"`
	Message        interface{} `json:"message,omitempty"`
	Timestamp      string      `json:"timestamp"`
	ConversationID string      `json:"conversationId,omitempty"`
}

// NewServerFrame stamps an outbound frame with the current time.
func NewServerFrame(frameType string) ServerFrame {
	return ServerFrame{
		Type:      frameType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorFrame builds an error response. Error frames are non-fatal:
// the connection stays open and the client may retry.
func ErrorFrame(code, detail string) ServerFrame {
	f := NewServerFrame(FrameError)
	f.Data = map[string]string{"code": code, "message": detail}
	return f
}
