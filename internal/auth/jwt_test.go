package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportchat-ws/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestVerifyValidToken(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token := signToken(t, Claims{
		UserID: "user-1",
		Email:  "a@example.com",
		Role:   "CUSTOMER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	ident, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", ident.UserID)
	assert.Equal(t, domain.RoleCustomer, ident.Role)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := signToken(t, Claims{
		UserID: "user-1",
		Role:   "AGENT",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	badRole := signToken(t, Claims{UserID: "user-1", Role: "ADMIN"})
	_, err = v.Verify(badRole)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1", Role: "AGENT"})
	s, err := tok.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = NewJWTVerifier(testSecret).Verify(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)

	_, err = BearerToken("")
	assert.Error(t, err)

	_, err = BearerToken("Basic abc123")
	assert.Error(t, err)
}
