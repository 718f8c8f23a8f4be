package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kodbank/banking-api/internal/core/domain"
	"github.com/kodbank/banking-api/internal/core/ports"
)

// BalanceService reads account balances for authenticated callers.
type BalanceService struct {
	users ports.UserRepository
}

func NewBalanceService(users ports.UserRepository) *BalanceService {
	return &BalanceService{users: users}
}

// CheckBalance looks the account up by the username resolved from the token.
// The account may have disappeared since the token was issued.
func (s *BalanceService) CheckBalance(ctx context.Context, identity domain.Identity) (*ports.BalanceResult, error) {
	if identity.Username == "" {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.users.FindByUsername(ctx, identity.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("check balance: %w", err)
	}

	return &ports.BalanceResult{Username: user.Username, Balance: user.Balance}, nil
}
