package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kodbank/banking-api/internal/core/ports"
	"github.com/kodbank/banking-api/internal/pkg/metrics"
)

const (
	defaultSweepInterval = 10 * time.Minute
	sweepTimeout         = 30 * time.Second
)

// SessionSweeper periodically deletes session records that expired or
// outlived the retention window.
type SessionSweeper struct {
	sessions  ports.SessionRepository
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewSessionSweeper creates a sweeper. If interval <= 0, defaultSweepInterval
// is used.
func NewSessionSweeper(sessions ports.SessionRepository, interval, retention time.Duration, log zerolog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SessionSweeper{
		sessions:  sessions,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

// Start launches the sweep loop. It stops when ctx is cancelled.
func (s *SessionSweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *SessionSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single deletion pass and returns the number of removed
// records.
func (s *SessionSweeper) SweepOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC(), s.retention)
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return 0
	}
	if n > 0 {
		metrics.SessionsSweptTotal.Add(float64(n))
		s.log.Info().Int64("removed", n).Msg("expired sessions swept")
	}
	return n
}
