package ledger

import (
	"context"
	"fmt"
	"time"
)

// Ledger is a sent-alert store that owns a connection.
type Ledger interface {
	Seen(ctx context.Context, keys []string) (map[string]bool, error)
	Mark(ctx context.Context, keys []string) error
	Close() error
}

// Open picks a backend by name: "sqlite" (path) or "redis" (redisURL).
func Open(ctx context.Context, backend, path, redisURL string, ttl time.Duration) (Ledger, error) {
	switch backend {
	case "", "sqlite":
		return OpenSQLite(path, ttl)
	case "redis":
		return OpenRedis(ctx, redisURL, ttl)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
