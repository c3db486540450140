package dto

import (
	"time"

	"github.com/spec-kit/blog-service/internal/domain"
)

// LoginRequest payload for login. Identifier is a username or email.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// RevokeRequest payload for administrative token invalidation.
type RevokeRequest struct {
	Token string `json:"token"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse wraps the account view and its session token.
type LoginResponse struct {
	Account *domain.SafeAccount `json:"account"`
	Auth    AuthResponse        `json:"auth"`
}
