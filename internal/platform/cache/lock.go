package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("platform/cache: lock held elsewhere")

// Locker hands out short-lived distributed locks stored in Redis.
type Locker struct {
	client *redislock.Client
	prefix string
}

// NewLocker wraps a Redis client.
func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{client: redislock.New(rdb), prefix: "lock:"}
}

// Obtain tries once to take key for ttl. The returned release func must be
// called when the guarded work is done.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("platform/cache: obtain %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
