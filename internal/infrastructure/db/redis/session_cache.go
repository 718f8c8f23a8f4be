package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionCache keeps a presence marker per live session so the access guard
// can skip the session store on the hot path.
// Key format: session:<session_id>
type SessionCache struct {
	client redis.Cmdable
}

// NewSessionCache creates a SessionCache wrapping the given Redis client.
func NewSessionCache(client redis.Cmdable) *SessionCache {
	return &SessionCache{client: client}
}

// Put marks the session as live until ttl elapses. Non-positive TTLs are
// ignored since the session is already over.
func (c *SessionCache) Put(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("session cache put: %w", err)
	}
	return nil
}

// Exists reports whether a live marker is present.
func (c *SessionCache) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("session cache check: %w", err)
	}
	return n > 0, nil
}

func (c *SessionCache) key(sessionID string) string {
	return "session:" + sessionID
}
