package ports

import (
	"context"
	"time"

	"github.com/kodbank/banking-api/internal/core/domain"
)

// SessionRepository is the session store.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	// FindByID returns domain.ErrSessionNotFound when no record exists.
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	// DeleteExpired removes sessions expired at now or created before
	// now-retention, returning how many were removed.
	DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// SessionCache is a fast presence index of live sessions keyed by token ID.
type SessionCache interface {
	Put(ctx context.Context, sessionID string, ttl time.Duration) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// LoginThrottle counts failed logins per key.
type LoginThrottle interface {
	Blocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
