package delivery

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"supportchat-ws/internal/auth"
)

// WebSocket close codes used on handshake failure.
const (
	closePolicyViolation = 1008
	closeInternalError   = 1011
)

// handleSocket runs the lifetime of one WebSocket connection: token
// handshake, admission into the hub, then the inbound read loop. Frames
// are processed in arrival order; the hub owns everything else.
func (s *Server) handleSocket(conn *websocket.Conn) {
	defer conn.Close()

	token := conn.Query("token")
	if token == "" {
		if header := conn.Headers("Authorization"); header != "" {
			token, _ = auth.BearerToken(header)
		}
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.closeWith(conn, closePolicyViolation, "authentication failed")
		return
	}

	conn.SetReadLimit(s.cfg.MaxMessageSize)

	sock := &wsSocket{conn: conn, writeDeadline: s.cfg.WriteDeadline}
	connID, err := s.hub.Admit(sock, identity)
	if err != nil {
		s.log.Error("connection admission failed",
			zap.String("userId", identity.UserID), zap.Error(err))
		s.closeWith(conn, closeInternalError, "admission failed")
		return
	}
	defer s.hub.Disconnect(connID)

	conn.SetPongHandler(func(string) error {
		s.hub.Touch(connID)
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.hub.HandleFrame(context.Background(), connID, data)
	}
}

// closeWith sends a close control frame with the given status code and
// reason, then drops the connection.
func (s *Server) closeWith(conn *websocket.Conn, code int, reason string) {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	_ = conn.WriteControl(websocket.CloseMessage, payload, time.Now().Add(time.Second))
	_ = conn.Close()
}

// wsSocket adapts the fiber WebSocket connection to the hub's Socket
// interface. Write serialization happens in the hub.
type wsSocket struct {
	conn          *websocket.Conn
	writeDeadline time.Duration
}

func (s *wsSocket) WriteText(data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeDeadline))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSocket) Ping(deadline time.Time) error {
	return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (s *wsSocket) Close() error {
	return s.conn.Close()
}
