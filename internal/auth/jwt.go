package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"supportchat-ws/internal/domain"
)

var (
	ErrEmptyToken   = errors.New("auth: empty token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verifier turns a bearer token into an authenticated identity.
type Verifier interface {
	Verify(token string) (domain.Identity, error)
}

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens issued by the auth service.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenStr string) (domain.Identity, error) {
	if tokenStr == "" {
		return domain.Identity{}, ErrEmptyToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	role := domain.Role(claims.Role)
	if role != domain.RoleCustomer && role != domain.RoleAgent {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{UserID: claims.UserID, Email: claims.Email, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrEmptyToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
