package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const principalKeyPrefix = "rbac:principal:"

// Cache memoizes principals in Redis and collapses concurrent loads of the
// same user into one database round trip.
type Cache struct {
	source PrincipalSource
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache wraps source. A nil client disables the Redis layer.
func NewCache(source PrincipalSource, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{source: source, client: client, ttl: ttl, logger: logger}
}

func principalKey(userID int64) string {
	return principalKeyPrefix + strconv.FormatInt(userID, 10)
}

// LoadPrincipal implements PrincipalSource.
func (c *Cache) LoadPrincipal(ctx context.Context, userID int64) (Principal, error) {
	key := principalKey(userID)
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var p Principal
			if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
				return p, nil
			}
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("rbac principal cache read", slog.Any("error", err))
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.source.LoadPrincipal(ctx, userID)
		if err != nil {
			return Principal{}, err
		}
		if c.client != nil {
			if data, err := json.Marshal(p); err == nil {
				if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
					c.logger.Warn("rbac principal cache write", slog.Any("error", err))
				}
			}
		}
		return p, nil
	})
	if err != nil {
		return Principal{}, err
	}
	return v.(Principal), nil
}

// Invalidate drops the cached principals of the given users.
func (c *Cache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if c.client == nil || len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = principalKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// InvalidateAll drops every cached principal. Role edits use it since any
// number of users may hold the role.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, principalKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
