package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// TeamID may be empty: a freshly invited user has no team until an admin
// assigns one, and call attribution simply holds back until then.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	TeamID    string    `json:"team_id,omitempty"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
