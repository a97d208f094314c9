// Package idempotency deduplicates retried mutations by remembering the
// outcome of the first request that used a token. The guard is best effort
// and fail-open: an unavailable backing store widens the duplicate window but
// never blocks or fails a request.
package idempotency

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// Guard stores token -> outcome mappings in Redis with a fixed TTL.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewGuard builds a guard. A nil client yields a guard that never hits.
func NewGuard(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Guard {
	return &Guard{client: client, ttl: ttl, logger: logger}
}

// Check loads the stored outcome for the token into out and reports whether
// one existed. Store errors are treated as a miss.
func (g *Guard) Check(ctx context.Context, token string, out any) bool {
	if g == nil || g.client == nil || token == "" {
		return false
	}

	data, err := g.client.Get(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if err != redis.Nil {
			g.logger.Warn("idempotency check failed", "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		g.logger.Warn("idempotency record corrupt", "error", err)
		return false
	}
	return true
}

// Store persists the outcome under the token. Failures are logged and
// swallowed: a lost record must never fail the request that already succeeded.
func (g *Guard) Store(ctx context.Context, token string, outcome any) {
	if g == nil || g.client == nil || token == "" {
		return
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		g.logger.Warn("encode idempotency record", "error", err)
		return
	}
	if err := g.client.Set(ctx, keyPrefix+token, data, g.ttl).Err(); err != nil {
		g.logger.Warn("idempotency store failed", "error", err)
	}
}
