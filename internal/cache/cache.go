// Package cache is the read-through cache used in front of the metadata and
// media stores and the media probe.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is a byte oriented key/value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON decodes the entry under key into dst.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// GetOrSet returns the cached value for key, or calls load and caches its
// result. A load reporting found == false is not cached.
func GetOrSet[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, bool, error)) (T, bool, error) {
	var v T
	hit, err := GetJSON(ctx, c, key, &v)
	if err != nil {
		return v, false, err
	}
	if hit {
		return v, true, nil
	}

	v, found, err := load(ctx)
	if err != nil || !found {
		return v, found, err
	}
	if err := SetJSON(ctx, c, key, v, ttl); err != nil {
		return v, true, err
	}
	return v, true, nil
}
