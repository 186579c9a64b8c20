package cache

import (
	"context"
	"time"
)

// Notifier tells other nodes that a cache entry was rewritten so they drop
// their local copy.
type Notifier interface {
	RefreshCacheKey(ctx context.Context, key string, ttl time.Duration) error
}

type NopNotifier struct{}

func (NopNotifier) RefreshCacheKey(context.Context, string, time.Duration) error { return nil }
