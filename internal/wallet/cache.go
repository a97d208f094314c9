package wallet

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const balanceKeyPrefix = "wallet:balance:"

// Cache is the read-through balance cache. It is never the system of record:
// reads fail open to the store, writes and invalidations are best effort, and
// every entry expires after the configured TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache builds a balance cache. A nil client yields a cache that always
// misses, which keeps cache-less development working.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached snapshot for the user, or a miss on any error.
func (c *Cache) Get(ctx context.Context, userID string) (Snapshot, bool) {
	if c == nil || c.client == nil {
		return Snapshot{}, false
	}

	data, err := c.client.Get(ctx, balanceKeyPrefix+userID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("balance cache read failed", "user_id", userID, "error", err)
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("balance cache entry corrupt", "user_id", userID, "error", err)
		return Snapshot{}, false
	}
	return snap, true
}

// Set repopulates the cache entry for the user.
func (c *Cache) Set(ctx context.Context, userID string, snap Snapshot) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("encode balance snapshot", "user_id", userID, "error", err)
		return
	}
	if err := c.client.Set(ctx, balanceKeyPrefix+userID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("balance cache write failed", "user_id", userID, "error", err)
	}
}

// Invalidate drops the cache entry after a successful mutation. Invalidation,
// not update: the next read repopulates from the store.
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Del(ctx, balanceKeyPrefix+userID).Err(); err != nil {
		c.logger.Warn("balance cache invalidation failed", "user_id", userID, "error", err)
	}
}
