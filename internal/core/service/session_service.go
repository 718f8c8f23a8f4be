package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kodbank/banking-api/internal/core/domain"
	"github.com/kodbank/banking-api/internal/core/ports"
)

// SessionService confirms that a token's session record is still live. The
// access guard consults it only when server-side session checks are enabled.
type SessionService struct {
	sessions  ports.SessionRepository
	cache     ports.SessionCache // optional
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewSessionService treats a session as gone once retention has passed since
// its creation, even when the token itself is still valid.
func NewSessionService(sessions ports.SessionRepository, cache ports.SessionCache, retention time.Duration, log zerolog.Logger) *SessionService {
	return &SessionService{sessions: sessions, cache: cache, retention: retention, now: time.Now, log: log}
}

// Verify returns domain.ErrUnauthorized when the session is unknown or
// expired. A cache hit short-circuits the store lookup; cache errors fall
// through to the store.
func (s *SessionService) Verify(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrUnauthorized
	}

	if s.cache != nil {
		hit, err := s.cache.Exists(ctx, sessionID)
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("session cache lookup failed")
		} else if hit {
			return nil
		}
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("verify session: %w", err)
	}

	now := s.now()
	if !session.Active(now, s.retention) {
		return domain.ErrUnauthorized
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, sessionID, session.LiveUntil(s.retention).Sub(now)); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to backfill session cache")
		}
	}
	return nil
}
