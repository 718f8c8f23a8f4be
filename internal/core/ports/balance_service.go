package ports

import (
	"context"

	"github.com/kodbank/banking-api/internal/core/domain"
)

// BalanceResult is the read model returned by CheckBalance.
type BalanceResult struct {
	Username string
	Balance  domain.Amount
}

type BalanceService interface {
	CheckBalance(ctx context.Context, identity domain.Identity) (*BalanceResult, error)
}
