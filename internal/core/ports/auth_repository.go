package ports

import (
	"context"

	"github.com/kodbank/banking-api/internal/core/domain"
)

// UserRepository is the credential store.
type UserRepository interface {
	// Create persists a new account. It returns domain.ErrDuplicateIdentity
	// when the storage uniqueness constraint on username or email rejects it.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// ExistsByUsernameOrEmail is the registration pre-check. Email matching
	// uses domain.EmailKey.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}
