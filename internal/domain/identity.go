package domain

// Role of an authenticated chat user.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAgent    Role = "AGENT"
)

// Identity is the authenticated principal bound to a WebSocket connection.
// It is produced once by the token verifier and never mutated afterwards.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}
