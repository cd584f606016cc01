// Package cache implements the compute-or-fetch pattern over the key-value
// store. Feature services derive a content-addressed key from their query
// parameters, and WithCaching either returns the stored snapshot or runs the
// fetch function and stores its result.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studylog/studylog-api/internal/store"
)

// DefaultTTL applies when a caller does not specify an entry lifetime.
const DefaultTTL = 3600 * time.Second

// Cache wraps a Store with serialization and key derivation. It carries no
// state of its own beyond the store handle and may be shared freely.
type Cache struct {
	store store.Store
	ttl   time.Duration
}

// New builds a Cache with the given default TTL; ttl <= 0 selects DefaultTTL.
func New(s store.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: s, ttl: ttl}
}

// Key derives a deterministic cache key: prefix + ":" + hex(sha256(canonical
// JSON of params)). encoding/json sorts map keys and fixes struct field
// order, so a structurally identical params value always yields the same
// key, and any field difference changes it.
func Key(prefix string, params any) (string, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cache: derive key for %q: %w", prefix, err)
	}
	sum := sha256.Sum256(canonical)
	return prefix + ":" + hex.EncodeToString(sum[:]), nil
}

// WithCaching returns the cached value for key when present, without calling
// fetch. On a miss it calls fetch exactly once, stores the serialized result
// with the cache's TTL, and returns the in-memory value directly — the
// caller never pays a decode round-trip on the miss path.
//
// Values are decoded into the caller's concrete type T, so large integers
// and timestamps survive the round-trip exactly (no float64 truncation;
// time.Time uses RFC 3339 with nanoseconds). Store and fetch errors
// propagate unchanged.
func WithCaching[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	return WithCachingTTL(ctx, c, key, c.ttl, fetch)
}

// WithCachingTTL is WithCaching with an explicit entry lifetime.
func WithCachingTTL[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		if uerr := json.Unmarshal([]byte(raw), &v); uerr != nil {
			return zero, fmt.Errorf("cache: decode %q: %w", key, uerr)
		}
		return v, nil
	case !errors.Is(err, store.ErrNotFound):
		return zero, err
	}

	v, err := fetch(ctx)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("cache: encode %q: %w", key, err)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.store.Set(ctx, key, string(encoded), ttl); err != nil {
		return zero, err
	}
	return v, nil
}

// Invalidate removes a single entry.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	_, err := c.store.Del(ctx, key)
	return err
}

// InvalidateByPattern removes every entry matching a glob pattern. The
// underlying store iterates with a bounded cursor scan, so this is safe to
// call against large keyspaces.
func (c *Cache) InvalidateByPattern(ctx context.Context, pattern string) (int64, error) {
	return c.store.ScanDel(ctx, pattern)
}
