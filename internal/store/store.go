// Package store provides key-value access for session state, one-time codes
// and cached query results. The production implementation is Redis; tests use
// the in-memory fake under storefakes.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired. Callers
// in the auth path must treat it as "invalid", never as a store failure.
var ErrNotFound = errors.New("store: key not found")

// Store is the key-value contract consumed by the session manager, the
// cache-aside service and the auth-code flows. Every method is a single
// round-trip; implementations log failures with key context and return the
// error unchanged (no retry, no fallback).
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// GetDel atomically reads and deletes a key. It backs refresh-token
	// rotation: a token fetched through GetDel can never be fetched again,
	// closing the concurrent-replay window.
	GetDel(ctx context.Context, key string) (string, error)
	// Set writes a value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ExpireInDays(ctx context.Context, key string, days int) (bool, error)
	// TTLSeconds follows the Redis convention: -1 = no TTL, -2 = missing key.
	TTLSeconds(ctx context.Context, key string) (int64, error)

	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)

	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key, field, value string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// ScanDel deletes every key matching a glob pattern using a cursor scan
	// in bounded batches, so large keyspaces never block the store.
	ScanDel(ctx context.Context, pattern string) (int64, error)
}
