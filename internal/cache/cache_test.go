package cache_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studylog/studylog-api/internal/cache"
	"github.com/studylog/studylog-api/internal/store/storefakes"
)

type statsParams struct {
	MemberID uint64 `json:"memberId"`
	Range    string `json:"range"`
}

type snapshot struct {
	Counter    int64     `json:"counter"`
	RecordedAt time.Time `json:"recordedAt"`
	Nested     struct {
		Values []int64 `json:"values"`
	} `json:"nested"`
}

func TestKeyDeterminism(t *testing.T) {
	k1, err := cache.Key("memberStats", statsParams{MemberID: 42, Range: "30d"})
	require.NoError(t, err)
	k2, err := cache.Key("memberStats", statsParams{MemberID: 42, Range: "30d"})
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	// prefix + ":" + 64 hex chars
	require.Regexp(t, regexp.MustCompile(`^memberStats:[0-9a-f]{64}$`), k1)

	k3, err := cache.Key("memberStats", statsParams{MemberID: 43, Range: "30d"})
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)

	k4, err := cache.Key("memberStats", statsParams{MemberID: 42, Range: "7d"})
	require.NoError(t, err)
	require.NotEqual(t, k1, k4)

	k5, err := cache.Key("other", statsParams{MemberID: 42, Range: "30d"})
	require.NoError(t, err)
	require.NotEqual(t, k1, k5)
}

func TestRoundTripPreservesLargeIntsAndTimes(t *testing.T) {
	ctx := context.Background()
	c := cache.New(storefakes.New(), 0)

	want := snapshot{
		// 2^53+1 cannot survive a float64 detour.
		Counter:    9007199254740993,
		RecordedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
	}
	want.Nested.Values = []int64{1, 9223372036854775807}

	// Miss populates the entry and returns the fetched value directly.
	got, err := cache.WithCaching(ctx, c, "snap:key", func(context.Context) (snapshot, error) {
		return want, nil
	})
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Hit decodes the stored snapshot; fetch must not run.
	got2, err := cache.WithCaching(ctx, c, "snap:key", func(context.Context) (snapshot, error) {
		t.Fatal("fetch called on hit")
		return snapshot{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, want, got2)
	require.Equal(t, int64(9007199254740993), got2.Counter)
	require.True(t, want.RecordedAt.Equal(got2.RecordedAt))
}

func TestMissCallsFetchExactlyOnce(t *testing.T) {
	ctx := context.Background()
	c := cache.New(storefakes.New(), 0)

	calls := 0
	fetch := func(context.Context) (int64, error) {
		calls++
		return 7, nil
	}

	v, err := cache.WithCaching(ctx, c, "cnt:key", fetch)
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
	require.Equal(t, 1, calls)

	// Subsequent hits never invoke fetch again.
	for i := 0; i < 3; i++ {
		v, err = cache.WithCaching(ctx, c, "cnt:key", fetch)
		require.NoError(t, err)
		require.Equal(t, int64(7), v)
	}
	require.Equal(t, 1, calls)
}

func TestExpiredEntryFetchesAgain(t *testing.T) {
	ctx := context.Background()
	fs := storefakes.New()
	c := cache.New(fs, 0)

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}

	_, err := cache.WithCachingTTL(ctx, c, "ttl:key", 10*time.Second, fetch)
	require.NoError(t, err)

	base := time.Now()
	fs.Now = func() time.Time { return base.Add(11 * time.Second) }

	_, err = cache.WithCachingTTL(ctx, c, "ttl:key", 10*time.Second, fetch)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestFetchErrorPropagatesUnchanged(t *testing.T) {
	ctx := context.Background()
	c := cache.New(storefakes.New(), 0)

	boom := errors.New("backend down")
	_, err := cache.WithCaching(ctx, c, "err:key", func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	// The failed fetch must not have populated the cache.
	calls := 0
	_, err = cache.WithCaching(ctx, c, "err:key", func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	c := cache.New(storefakes.New(), 0)

	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	_, err := cache.WithCaching(ctx, c, "inv:key", fetch)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "inv:key"))

	v, err := cache.WithCaching(ctx, c, "inv:key", fetch)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestInvalidateByPattern(t *testing.T) {
	ctx := context.Background()
	c := cache.New(storefakes.New(), 0)

	fetch := func(context.Context) (int, error) { return 1, nil }
	for _, key := range []string{"memberStats:aaa", "memberStats:bbb", "other:ccc"} {
		_, err := cache.WithCaching(ctx, c, key, fetch)
		require.NoError(t, err)
	}

	deleted, err := c.InvalidateByPattern(ctx, "memberStats:*")
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	// The untouched prefix still hits.
	called := false
	_, err = cache.WithCaching(ctx, c, "other:ccc", func(context.Context) (int, error) {
		called = true
		return 2, nil
	})
	require.NoError(t, err)
	require.False(t, called)
}
