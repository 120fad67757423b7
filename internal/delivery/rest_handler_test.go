package delivery

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"supportchat-ws/internal/auth"
	"supportchat-ws/internal/config"
	"supportchat-ws/internal/gateway"
	"supportchat-ws/internal/hub"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, *gateway.MemoryGateway) {
	t.Helper()
	cfg := &config.Config{
		Port:           "0",
		Environment:    "development",
		WriteDeadline:  time.Second,
		MaxMessageSize: 64 * 1024,
	}
	gw := gateway.NewMemoryGateway()
	h := hub.New(hub.Options{Gateway: gw, SweepInterval: time.Hour})
	verifier := auth.NewJWTVerifier(testSecret)
	return NewServer(cfg, h, verifier, gw, nil, zap.NewNop()), gw
}

func signToken(t *testing.T, userID, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doRequest(t *testing.T, s *Server, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	s, _ := newTestServer(t)
	resp := doRequest(t, s, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatsRequiresAuth(t *testing.T) {
	s, _ := newTestServer(t)

	resp := doRequest(t, s, "/stats", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, s, "/stats", signToken(t, "user-a", "CUSTOMER"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConversationPresenceAuthorization(t *testing.T) {
	s, gw := newTestServer(t)
	gw.AddParticipant("conv-1", "user-a")

	// Unauthenticated.
	resp := doRequest(t, s, "/api/conversations/conv-1/presence", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Customer outside the conversation.
	resp = doRequest(t, s, "/api/conversations/conv-1/presence", signToken(t, "user-x", "CUSTOMER"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Participant passes the membership gate; the store is not configured
	// in this setup, so the request fails with unavailable, not forbidden.
	resp = doRequest(t, s, "/api/conversations/conv-1/presence", signToken(t, "user-a", "CUSTOMER"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// Agents may inspect any conversation.
	resp = doRequest(t, s, "/api/conversations/conv-1/presence", signToken(t, "agent-1", "AGENT"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
