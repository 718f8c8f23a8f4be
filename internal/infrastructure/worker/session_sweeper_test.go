package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kodbank/banking-api/internal/core/domain"
)

type stubSessionRepo struct {
	mu        sync.Mutex
	sessions  []*domain.Session
	deleteErr error
	calls     int
}

func (r *stubSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *stubSessionRepo) FindByID(_ context.Context, id string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}

func (r *stubSessionRepo) DeleteExpired(_ context.Context, now time.Time, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	kept := r.sessions[:0]
	var removed int64
	for _, s := range r.sessions {
		if !s.ExpiresAt.After(now) || s.CreatedAt.Before(now.Add(-retention)) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.sessions = kept
	return removed, nil
}

func (r *stubSessionRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestSessionSweeper_SweepOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubSessionRepo{sessions: []*domain.Session{
		{ID: "live", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
		{ID: "expired", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Minute)},
		{ID: "retained-too-long", CreatedAt: now.Add(-25 * time.Hour), ExpiresAt: now.Add(time.Hour)},
	}}

	s := NewSessionSweeper(repo, time.Minute, domain.SessionRetention, zerolog.Nop())
	s.now = func() time.Time { return now }

	if n := s.SweepOnce(context.Background()); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if len(repo.sessions) != 1 || repo.sessions[0].ID != "live" {
		t.Fatalf("unexpected remaining sessions: %+v", repo.sessions)
	}
}

func TestSessionSweeper_SweepError(t *testing.T) {
	repo := &stubSessionRepo{deleteErr: errors.New("db down")}
	s := NewSessionSweeper(repo, time.Minute, time.Hour, zerolog.Nop())

	if n := s.SweepOnce(context.Background()); n != 0 {
		t.Fatalf("expected 0 on error, got %d", n)
	}
}

func TestSessionSweeper_DefaultInterval(t *testing.T) {
	s := NewSessionSweeper(&stubSessionRepo{}, 0, time.Hour, zerolog.Nop())
	if s.interval != defaultSweepInterval {
		t.Fatalf("expected default interval, got %v", s.interval)
	}
}

func TestSessionSweeper_StartStopsOnCancel(t *testing.T) {
	repo := &stubSessionRepo{}
	s := NewSessionSweeper(repo, 5*time.Millisecond, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for repo.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if repo.callCount() == 0 {
		t.Fatalf("expected at least one sweep")
	}
	cancel()
}
