package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"supportchat-ws/internal/backbone"
	"supportchat-ws/internal/domain"
	"supportchat-ws/internal/gateway"
)

// Error codes carried in error frames.
const (
	errCodeInvalidFrame    = "invalid_frame"
	errCodeUnknownType     = "unknown_type"
	errCodeNotAParticipant = "not_a_participant"
	errCodeInternal        = "internal_error"
)

// HandleFrame processes one inbound client frame. Every failure is
// converted to an error frame or a log line here; nothing escapes to the
// read loop, and an error never closes the connection.
func (h *Hub) HandleFrame(ctx context.Context, connID string, raw []byte) {
	c, ok := h.registry.get(connID)
	if !ok {
		return
	}
	h.registry.Touch(connID)

	var frame domain.ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(c, errCodeInvalidFrame, "invalid message format")
		return
	}

	switch frame.Type {
	case domain.FramePing:
		pong := domain.NewServerFrame(domain.FramePong)
		if err := c.writeFrame(pong); err != nil {
			h.Disconnect(connID)
		}
	case domain.FrameTypingStart:
		h.handleTyping(c, frame, true)
	case domain.FrameTypingStop:
		h.handleTyping(c, frame, false)
	case domain.FrameChatMessage:
		h.handleChatMessage(ctx, c, frame)
	default:
		h.sendError(c, errCodeUnknownType, "unrecognized frame type")
	}
}

// handleChatMessage validates, persists through the gateway, acks the
// sender, then publishes. The ack always precedes the broadcast so the
// sender never depends on the backbone for confirmation.
func (h *Hub) handleChatMessage(ctx context.Context, c *connection, frame domain.ClientFrame) {
	if frame.ConversationID == "" || frame.Body == "" {
		h.sendError(c, errCodeInvalidFrame, "conversationId and body are required")
		return
	}
	contentType := domain.ContentType(frame.ContentType)
	if contentType == "" {
		contentType = domain.ContentText
	}
	switch contentType {
	case domain.ContentText, domain.ContentImage, domain.ContentFile:
	default:
		h.sendError(c, errCodeInvalidFrame, "unsupported contentType")
		return
	}

	gwCtx, cancel := context.WithTimeout(ctx, h.gatewayTimeout)
	defer cancel()

	participant, err := h.gw.IsParticipant(gwCtx, frame.ConversationID, c.identity.UserID)
	if err != nil {
		h.log.Error("participant check failed",
			zap.String("conversationId", frame.ConversationID), zap.Error(err))
		h.sendError(c, errCodeInternal, "could not verify conversation membership")
		return
	}
	if !participant {
		h.sendError(c, errCodeNotAParticipant, "you are not a participant of this conversation")
		return
	}

	msg, err := h.gw.CreateMessage(gwCtx, frame.ConversationID, c.identity.UserID, c.identity.Role, contentType, frame.Body)
	if err != nil {
		if errors.Is(err, gateway.ErrNotParticipant) {
			h.sendError(c, errCodeNotAParticipant, "you are not a participant of this conversation")
			return
		}
		h.log.Error("message persistence failed",
			zap.String("conversationId", frame.ConversationID), zap.Error(err))
		h.sendError(c, errCodeInternal, "message could not be stored")
		return
	}

	ack := domain.NewServerFrame(domain.FrameMessageSent)
	ack.Message = msg
	ack.ConversationID = msg.ConversationID
	if err := c.writeFrame(ack); err != nil {
		h.Disconnect(c.id)
		return
	}

	event := domain.MessageEvent{
		ConversationID: msg.ConversationID,
		SenderID:       c.identity.UserID,
		Message:        *msg,
		Timestamp:      time.Now().UTC(),
	}
	h.publish(backbone.ConversationChannel(msg.ConversationID), event)
	h.export(event)
}

// handleTyping publishes on the global typing channel. No persistence,
// no response to the sender.
func (h *Hub) handleTyping(c *connection, frame domain.ClientFrame, isTyping bool) {
	if frame.ConversationID == "" {
		h.sendError(c, errCodeInvalidFrame, "conversationId is required")
		return
	}
	event := domain.TypingEvent{
		ConversationID: frame.ConversationID,
		UserID:         c.identity.UserID,
		Role:           c.identity.Role,
		IsTyping:       isTyping,
		Timestamp:      time.Now().UTC(),
	}
	h.publish(backbone.TypingChannel, event)
	h.export(event)
}

func (h *Hub) sendError(c *connection, code, detail string) {
	if err := c.writeFrame(domain.ErrorFrame(code, detail)); err != nil {
		h.Disconnect(c.id)
	}
}

func (h *Hub) export(event interface{}) {
	if h.exporter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.exporter.Export(ctx, event); err != nil {
		h.log.Warn("event export failed", zap.Error(err))
	}
}
