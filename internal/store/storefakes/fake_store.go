// Package storefakes provides an in-memory Store used by unit tests. It
// honors TTLs against a controllable clock so expiry behavior can be tested
// without sleeping.
package storefakes

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/studylog/studylog-api/internal/store"
)

type entry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// FakeStore is a mutex-guarded map implementation of store.Store.
type FakeStore struct {
	mu     sync.Mutex
	values map[string]entry
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}

	// Now returns the current time; tests may swap it to advance the clock.
	Now func() time.Time
}

func New() *FakeStore {
	return &FakeStore{
		values: make(map[string]entry),
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
		Now:    time.Now,
	}
}

// expired reports and lazily removes a dead value key. Callers hold mu.
func (f *FakeStore) expired(key string) bool {
	e, ok := f.values[key]
	if !ok {
		return false
	}
	if !e.expiresAt.IsZero() && f.Now().After(e.expiresAt) {
		delete(f.values, key)
		return true
	}
	return false
}

func (f *FakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired(key) {
		return "", store.ErrNotFound
	}
	e, ok := f.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return e.value, nil
}

func (f *FakeStore) GetDel(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired(key) {
		return "", store.ErrNotFound
	}
	e, ok := f.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	delete(f.values, key)
	return e.value, nil
}

func (f *FakeStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = f.Now().Add(ttl)
	}
	f.values[key] = e
	return nil
}

func (f *FakeStore) Del(_ context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
		if _, ok := f.hashes[k]; ok {
			delete(f.hashes, k)
			n++
		}
		if _, ok := f.sets[k]; ok {
			delete(f.sets, k)
			n++
		}
	}
	return n, nil
}

func (f *FakeStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired(key) {
		return false, nil
	}
	if _, ok := f.values[key]; ok {
		return true, nil
	}
	if _, ok := f.hashes[key]; ok {
		return true, nil
	}
	_, ok := f.sets[key]
	return ok, nil
}

func (f *FakeStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.values[key]
	if !ok {
		return false, nil
	}
	e.expiresAt = f.Now().Add(ttl)
	f.values[key] = e
	return true, nil
}

func (f *FakeStore) ExpireInDays(ctx context.Context, key string, days int) (bool, error) {
	return f.Expire(ctx, key, time.Duration(days)*24*time.Hour)
}

func (f *FakeStore) TTLSeconds(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired(key) {
		return -2, nil
	}
	e, ok := f.values[key]
	if !ok {
		return -2, nil
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return int64(e.expiresAt.Sub(f.Now()).Seconds()), nil
}

func (f *FakeStore) Incr(ctx context.Context, key string) (int64, error) {
	return f.IncrBy(ctx, key, 1)
}

func (f *FakeStore) IncrBy(_ context.Context, key string, by int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired(key)
	var cur int64
	if e, ok := f.values[key]; ok {
		n, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	cur += by
	e := f.values[key]
	e.value = strconv.FormatInt(cur, 10)
	f.values[key] = e
	return cur, nil
}

func (f *FakeStore) Decr(ctx context.Context, key string) (int64, error) {
	return f.IncrBy(ctx, key, -1)
}

func (f *FakeStore) HGet(_ context.Context, key, field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return "", store.ErrNotFound
	}
	v, ok := h[field]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (f *FakeStore) HSet(_ context.Context, key, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (f *FakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *FakeStore) HDel(_ context.Context, key string, fields ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, fd := range fields {
		if _, ok := h[fd]; ok {
			delete(h, fd)
			n++
		}
	}
	if len(h) == 0 {
		delete(f.hashes, key)
	}
	return n, nil
}

func (f *FakeStore) SAdd(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[key]
	if !ok {
		s = make(map[string]struct{})
		f.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
	return nil
}

func (f *FakeStore) SRem(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(s, m)
	}
	if len(s) == 0 {
		delete(f.sets, key)
	}
	return nil
}

func (f *FakeStore) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

func (f *FakeStore) ScanDel(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.values {
		if ok, _ := path.Match(pattern, k); ok {
			delete(f.values, k)
			n++
		}
	}
	for k := range f.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			delete(f.hashes, k)
			n++
		}
	}
	for k := range f.sets {
		if ok, _ := path.Match(pattern, k); ok {
			delete(f.sets, k)
			n++
		}
	}
	return n, nil
}
