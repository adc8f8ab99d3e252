package idempotency

import (
	"context"
	"time"
)

// DefaultTTL matches the retry window clients are given for replaying a
// status update with the same key.
const DefaultTTL = 24 * time.Hour

// Cache maps (orderID, idempotencyKey) to a previously computed status-update
// result. It is an optimization, not a source of truth: losing an entry costs
// at most a duplicate no-op evaluation of the transition table, never a
// duplicate side effect.
type Cache interface {
	// Get returns the cached result for the pair, or ok=false on a miss.
	Get(ctx context.Context, orderID, key string) ([]byte, bool, error)
	Set(ctx context.Context, orderID, key string, result []byte) error
}

func cacheKey(orderID, key string) string {
	return "idempotency:status:" + orderID + ":" + key
}
