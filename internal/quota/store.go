package quota

import (
	"context"
	"time"
)

// Store is the counter backend. IncrWithTTL must atomically increment the key
// and, when this increment created the key, attach the TTL; it returns the
// counter value after the increment. Check-then-increment races are resolved
// inside the store, never by callers.
type Store interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
