package shared

import (
	"context"
	"time"
)

// TTLStore remembers string keys for a bounded time. The engine uses it for
// webhook duplicate-delivery suppression and for alert cooldowns; both reduce
// to "have I seen this key within the window".
type TTLStore interface {
	// SetOnce records the key with a TTL.
	// Returns true if the key was newly recorded, false if it was already present
	SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Seen checks whether the key is currently recorded
	Seen(ctx context.Context, key string) (bool, error)

	// Close releases the store's resources
	Close() error
}
