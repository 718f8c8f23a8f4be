package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kodbank/banking-api/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

// stubUserRepo enforces username and email-key uniqueness inside Create the
// way the storage constraints do.
type stubUserRepo struct {
	mu         sync.Mutex
	byUsername map[string]*domain.User
	findErr    error
	existsErr  error
	createErr  error
	skipExists bool // pre-check always reports false, leaving Create as the only guard
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byUsername: make(map[string]*domain.User)}
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, u := range r.byUsername {
		if u.Username == user.Username || domain.EmailKey(u.Email) == domain.EmailKey(user.Email) {
			return nil, domain.ErrDuplicateIdentity
		}
	}
	clone := *user
	r.byUsername[user.Username] = &clone
	out := clone
	return &out, nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *stubUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsErr != nil {
		return false, r.existsErr
	}
	if r.skipExists {
		return false, nil
	}
	for _, u := range r.byUsername {
		if u.Username == username || domain.EmailKey(u.Email) == domain.EmailKey(email) {
			return true, nil
		}
	}
	return false, nil
}

type stubSessionRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Session
	createErr error
	findErr   error
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{byID: make(map[string]*domain.Session)}
}

func (r *stubSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	clone := *s
	r.byID[s.ID] = &clone
	return nil
}

func (r *stubSessionRepo) FindByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	s, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *stubSessionRepo) DeleteExpired(_ context.Context, now time.Time, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if !s.ExpiresAt.After(now) || s.CreatedAt.Before(now.Add(-retention)) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

type stubCache struct {
	mu        sync.Mutex
	entries   map[string]time.Duration
	existsErr error
	putErr    error
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]time.Duration)}
}

func (c *stubCache) Put(_ context.Context, id string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[id] = ttl
	return nil
}

func (c *stubCache) Exists(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.existsErr != nil {
		return false, c.existsErr
	}
	_, ok := c.entries[id]
	return ok, nil
}

type stubThrottle struct {
	limit    int
	failures map[string]int
	err      error
}

func newStubThrottle(limit int) *stubThrottle {
	return &stubThrottle{limit: limit, failures: make(map[string]int)}
}

func (t *stubThrottle) Blocked(_ context.Context, key string) (bool, error) {
	if t.err != nil {
		return false, t.err
	}
	return t.failures[key] >= t.limit, nil
}

func (t *stubThrottle) RecordFailure(_ context.Context, key string) error {
	if t.err != nil {
		return t.err
	}
	t.failures[key]++
	return nil
}

func (t *stubThrottle) Reset(_ context.Context, key string) error {
	if t.err != nil {
		return t.err
	}
	delete(t.failures, key)
	return nil
}

var errStorage = errors.New("storage unavailable")
