package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kodbank/banking-api/internal/core/domain"
)

// SessionRepository implements ports.SessionRepository on the user_tokens
// table.
type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const insertSession = `INSERT INTO user_tokens (tid, token, uid, expiry, created_at) VALUES ($1, $2, $3, $4, $5)`

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.Exec(ctx, insertSession, s.ID, s.Token, s.UserID, s.ExpiresAt.UTC(), s.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const selectSession = `SELECT tid::text, token, uid::text, expiry, created_at FROM user_tokens WHERE tid = $1`

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	// tid is a UUID column; anything else can never match.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var s domain.Session
	err := r.db.QueryRow(ctx, selectSession, id).Scan(&s.ID, &s.Token, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

const deleteExpiredSessions = `DELETE FROM user_tokens WHERE expiry <= $1 OR created_at < $2`

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredSessions, now.UTC(), now.Add(-retention).UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
