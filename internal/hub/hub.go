package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"supportchat-ws/internal/backbone"
	"supportchat-ws/internal/domain"
	"supportchat-ws/internal/gateway"
)

// PresenceBookkeeper mirrors conversation membership into a shared store
// (Redis) so other services can answer "who is online in this
// conversation" without asking each gateway process.
type PresenceBookkeeper interface {
	AddMember(ctx context.Context, conversationID, userID string, role domain.Role) error
	RemoveMember(ctx context.Context, conversationID, userID string) error
}

// EventExporter forwards realtime events to downstream consumers
// (notification service, analytics) outside the backbone.
type EventExporter interface {
	Export(ctx context.Context, event interface{}) error
}

// Options configures a Hub. Gateway is required; a nil Backbone puts the
// hub in local-only broadcast mode.
type Options struct {
	Gateway  gateway.Gateway
	Backbone backbone.Backbone
	Presence PresenceBookkeeper
	Exporter EventExporter
	Logger   *zap.Logger

	GatewayTimeout time.Duration
	SweepInterval  time.Duration
	PingTimeout    time.Duration
}

// Hub ties the Connection Registry, Subscription Index, broadcast
// backbone and persistence gateway together. One instance per process,
// constructed at startup and shut down with it.
type Hub struct {
	registry *Registry
	index    *SubscriptionIndex
	gw       gateway.Gateway
	bb       backbone.Backbone
	presence PresenceBookkeeper
	exporter EventExporter
	log      *zap.Logger

	gatewayTimeout time.Duration
	sweepInterval  time.Duration
	pingTimeout    time.Duration

	subsMu   sync.Mutex
	convSubs map[string]*backbone.Subscription

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 8 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	index := NewSubscriptionIndex()
	return &Hub{
		registry:       NewRegistry(index),
		index:          index,
		gw:             opts.Gateway,
		bb:             opts.Backbone,
		presence:       opts.Presence,
		exporter:       opts.Exporter,
		log:            opts.Logger,
		gatewayTimeout: opts.GatewayTimeout,
		sweepInterval:  opts.SweepInterval,
		pingTimeout:    opts.PingTimeout,
		convSubs:       make(map[string]*backbone.Subscription),
		done:           make(chan struct{}),
	}
}

// Run starts the backbone demultiplexing loop and the liveness sweeper.
func (h *Hub) Run() {
	if h.bb == nil {
		h.log.Warn("broadcast backbone unavailable, running in local-only mode")
	} else {
		for _, ch := range []string{backbone.TypingChannel, backbone.PresenceChannel} {
			if _, err := h.bb.Subscribe(ch); err != nil {
				h.log.Error("subscribe to global channel failed",
					zap.String("channel", ch), zap.Error(err))
			}
		}
		h.wg.Add(1)
		go h.demuxLoop()
	}
	h.wg.Add(1)
	go h.sweepLoop()
}

// Shutdown stops background loops and evicts every connection.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })

	h.subsMu.Lock()
	for _, sub := range h.convSubs {
		_ = sub.Cancel()
	}
	h.convSubs = make(map[string]*backbone.Subscription)
	h.subsMu.Unlock()

	for _, id := range h.registry.connIDs() {
		h.Disconnect(id)
	}
	h.wg.Wait()
}

// LocalOnly reports whether the hub runs without a backbone, delivering
// only to connections on this process.
func (h *Hub) LocalOnly() bool {
	return h.bb == nil
}

// Stats is the diagnostic snapshot served by the stats endpoint.
type Stats struct {
	Connections       int              `json:"connections"`
	Conversations     int              `json:"conversations"`
	BackboneConnected bool             `json:"backboneConnected"`
	Details           []ConnectionInfo `json:"details"`
}

func (h *Hub) Stats() Stats {
	connected := false
	if h.bb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		connected = h.bb.Connected(ctx)
		cancel()
	}
	return Stats{
		Connections:       h.registry.Count(),
		Conversations:     h.index.Size(),
		BackboneConnected: connected,
		Details:           h.registry.Snapshot(),
	}
}

// MembersOf exposes the Subscription Index snapshot for diagnostics.
func (h *Hub) MembersOf(conversationID string) []string {
	return h.index.MembersOf(conversationID)
}

// Admit registers an authenticated socket: resolves the user's
// conversations through the gateway, subscribes them locally and on the
// backbone, sends the welcome frame and announces presence.
func (h *Hub) Admit(sock Socket, identity domain.Identity) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.gatewayTimeout)
	defer cancel()
	conversations, err := h.gw.FindConversationsForUser(ctx, identity.UserID)
	if err != nil {
		return "", fmt.Errorf("resolve conversations: %w", err)
	}

	connID, newChannels, err := h.registry.Admit(sock, identity, conversations)
	if err != nil {
		return "", err
	}
	for _, conv := range newChannels {
		h.ensureChannel(conv)
	}
	if h.presence != nil {
		// A slow gateway lookup must not eat the bookkeeping budget.
		bookCtx, bookCancel := context.WithTimeout(context.Background(), h.gatewayTimeout)
		for _, conv := range conversations {
			if err := h.presence.AddMember(bookCtx, conv, identity.UserID, identity.Role); err != nil {
				h.log.Warn("presence bookkeeping failed",
					zap.String("conversationId", conv), zap.Error(err))
			}
		}
		bookCancel()
	}

	welcome := domain.NewServerFrame(domain.FrameWelcome)
	welcome.Data = map[string]interface{}{
		"connectionId":  connID,
		"userId":        identity.UserID,
		"role":          identity.Role,
		"conversations": conversations,
	}
	if c, ok := h.registry.get(connID); ok {
		if err := c.writeFrame(welcome); err != nil {
			h.Disconnect(connID)
			return "", err
		}
	}

	h.publishPresence(identity, domain.PresenceOnline)
	h.log.Info("connection admitted",
		zap.String("connectionId", connID),
		zap.String("userId", identity.UserID),
		zap.String("role", string(identity.Role)),
		zap.Int("conversations", len(conversations)))
	return connID, nil
}

// Disconnect evicts a connection, releases backbone subscriptions for
// conversations left without local members, and announces the user
// offline once their last connection on this process is gone.
func (h *Hub) Disconnect(connID string) {
	c, userReleased, released := h.registry.Evict(connID)
	if c == nil {
		return
	}
	for _, conv := range released {
		h.releaseChannel(conv)
	}
	// Membership bookkeeping follows the same decrement semantics as the
	// Subscription Index: the user stays listed while another of their
	// connections is subscribed to the conversation.
	if h.presence != nil && len(userReleased) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), h.gatewayTimeout)
		for _, conv := range userReleased {
			if err := h.presence.RemoveMember(ctx, conv, c.identity.UserID); err != nil {
				h.log.Warn("presence cleanup failed",
					zap.String("conversationId", conv), zap.Error(err))
			}
		}
		cancel()
	}
	if !h.registry.UserHasConnections(c.identity.UserID) {
		h.publishPresence(c.identity, domain.PresenceOffline)
	}
	h.log.Info("connection evicted",
		zap.String("connectionId", connID),
		zap.String("userId", c.identity.UserID))
}

// Touch refreshes liveness, called by the delivery layer on heartbeat
// responses.
func (h *Hub) Touch(connID string) {
	h.registry.Touch(connID)
}

func (h *Hub) ensureChannel(conversationID string) {
	if h.bb == nil {
		return
	}
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	if _, ok := h.convSubs[conversationID]; ok {
		return
	}
	sub, err := h.bb.Subscribe(backbone.ConversationChannel(conversationID))
	if err != nil {
		h.log.Error("conversation channel subscribe failed",
			zap.String("conversationId", conversationID), zap.Error(err))
		return
	}
	h.convSubs[conversationID] = sub
}

func (h *Hub) releaseChannel(conversationID string) {
	if h.bb == nil {
		return
	}
	h.subsMu.Lock()
	sub, ok := h.convSubs[conversationID]
	if ok {
		delete(h.convSubs, conversationID)
	}
	h.subsMu.Unlock()
	if ok {
		if err := sub.Cancel(); err != nil {
			h.log.Warn("conversation channel unsubscribe failed",
				zap.String("conversationId", conversationID), zap.Error(err))
		}
	}
}

// publish marshals an event onto a backbone channel. In local-only mode
// the event is routed straight to local connections instead. Publish
// failures are logged and never undo the persistence that preceded them.
func (h *Hub) publish(channel string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("event marshal failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	if h.bb == nil {
		h.route(backbone.Event{Channel: channel, Payload: payload})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.bb.Publish(ctx, channel, payload); err != nil {
		h.log.Error("backbone publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (h *Hub) publishPresence(identity domain.Identity, status string) {
	h.publish(backbone.PresenceChannel, domain.PresenceEvent{
		UserID:    identity.UserID,
		Role:      identity.Role,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

// demuxLoop is the single dispatch loop for every subscribed backbone
// channel, keyed by channel name.
func (h *Hub) demuxLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case ev, ok := <-h.bb.Events():
			if !ok {
				return
			}
			h.route(ev)
		}
	}
}

// route classifies one backbone event and fans it out locally. A panic
// while handling one event must not take the loop down.
func (h *Hub) route(ev backbone.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("recovered from panic in event dispatch",
				zap.String("channel", ev.Channel), zap.Any("panic", r))
		}
	}()

	switch ev.Channel {
	case backbone.TypingChannel:
		var typing domain.TypingEvent
		if err := json.Unmarshal(ev.Payload, &typing); err != nil {
			h.log.Warn("malformed typing event", zap.Error(err))
			return
		}
		h.deliverTyping(typing)
	case backbone.PresenceChannel:
		var presence domain.PresenceEvent
		if err := json.Unmarshal(ev.Payload, &presence); err != nil {
			h.log.Warn("malformed presence event", zap.Error(err))
			return
		}
		h.deliverPresence(presence)
	default:
		if _, ok := backbone.ConversationFromChannel(ev.Channel); !ok {
			h.log.Warn("event on unknown channel", zap.String("channel", ev.Channel))
			return
		}
		var msg domain.MessageEvent
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			h.log.Warn("malformed message event", zap.Error(err))
			return
		}
		h.deliverMessage(msg)
	}
}

// deliverMessage fans a stored message out to local conversation
// members. Connections of the originating user are excluded: the sender
// already holds the synchronous message_sent ack, and delivering again
// would duplicate the message client-side.
func (h *Hub) deliverMessage(ev domain.MessageEvent) {
	frame := domain.NewServerFrame(domain.FrameMessageReceived)
	frame.Message = ev.Message
	frame.ConversationID = ev.ConversationID
	h.registry.ForEachInConversation(ev.ConversationID, func(c *connection) {
		if c.identity.UserID == ev.SenderID {
			return
		}
		if err := c.writeFrame(frame); err != nil {
			h.log.Warn("message delivery failed, evicting",
				zap.String("connectionId", c.id), zap.Error(err))
			h.Disconnect(c.id)
		}
	})
}

// deliverTyping arrives on the global typing channel and is filtered to
// the event's conversation at delivery, excluding the typist.
func (h *Hub) deliverTyping(ev domain.TypingEvent) {
	frame := domain.NewServerFrame(domain.FrameTypingIndicator)
	frame.ConversationID = ev.ConversationID
	frame.Data = map[string]interface{}{
		"userId":   ev.UserID,
		"role":     ev.Role,
		"isTyping": ev.IsTyping,
	}
	h.registry.ForEachInConversation(ev.ConversationID, func(c *connection) {
		if c.identity.UserID == ev.UserID {
			return
		}
		if err := c.writeFrame(frame); err != nil {
			h.Disconnect(c.id)
		}
	})
}

// deliverPresence goes to every local connection with no conversation
// filter and no exclusion. Presence is deliberately global.
func (h *Hub) deliverPresence(ev domain.PresenceEvent) {
	frame := domain.NewServerFrame(domain.FramePresenceUpdate)
	frame.Data = map[string]interface{}{
		"userId": ev.UserID,
		"role":   ev.Role,
		"status": ev.Status,
	}
	h.registry.ForEach(func(c *connection) {
		if err := c.writeFrame(frame); err != nil {
			h.Disconnect(c.id)
		}
	})
}

// HandleMessageEvent implements the Kafka bridge handler: events that
// originated outside this process are delivered locally only.
func (h *Hub) HandleMessageEvent(ev domain.MessageEvent) {
	h.deliverMessage(ev)
}

func (h *Hub) HandleTypingEvent(ev domain.TypingEvent) {
	h.deliverTyping(ev)
}

func (h *Hub) HandlePresenceEvent(ev domain.PresenceEvent) {
	h.deliverPresence(ev)
}
