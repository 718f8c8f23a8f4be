package ports

import (
	"context"

	"github.com/kodbank/banking-api/internal/core/domain"
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Phone    string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	ExpiresIn int // seconds
	User      *domain.User
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

// SessionVerifier confirms a token's session record is still live.
type SessionVerifier interface {
	Verify(ctx context.Context, sessionID string) error
}
