package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle counts failed logins per key in a fixed window.
// Key format: login_fail:<key>
type LoginThrottle struct {
	client      redis.Cmdable
	maxAttempts int64
	window      time.Duration
}

// NewLoginThrottle blocks a key once maxAttempts failures land within window.
func NewLoginThrottle(client redis.Cmdable, maxAttempts int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Blocked reports whether key has reached the failure limit. A blocked
// counter that lost its expiry gets the window re-applied so it cannot lock
// the key out forever.
func (t *LoginThrottle) Blocked(ctx context.Context, key string) (bool, error) {
	k := t.key(key)
	n, err := t.client.Get(ctx, k).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("login throttle get: %w", err)
	}
	if n < t.maxAttempts {
		return false, nil
	}
	return true, t.ensureExpiry(ctx, k)
}

// RecordFailure increments the counter, starting the window on the first
// failure. Later failures repair a counter whose expiry was never set.
func (t *LoginThrottle) RecordFailure(ctx context.Context, key string) error {
	k := t.key(key)
	n, err := t.client.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("login throttle incr: %w", err)
	}
	if n == 1 {
		return t.expire(ctx, k)
	}
	return t.ensureExpiry(ctx, k)
}

func (t *LoginThrottle) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, t.key(key)).Err(); err != nil {
		return fmt.Errorf("login throttle reset: %w", err)
	}
	return nil
}

// ensureExpiry sets the window on k when it has no TTL. TTL reports -1 for a
// key without expiry.
func (t *LoginThrottle) ensureExpiry(ctx context.Context, k string) error {
	ttl, err := t.client.TTL(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("login throttle ttl: %w", err)
	}
	if ttl != -1 {
		return nil
	}
	return t.expire(ctx, k)
}

func (t *LoginThrottle) expire(ctx context.Context, k string) error {
	if err := t.client.Expire(ctx, k, t.window).Err(); err != nil {
		return fmt.Errorf("login throttle expire: %w", err)
	}
	return nil
}

func (t *LoginThrottle) key(key string) string {
	return "login_fail:" + key
}
