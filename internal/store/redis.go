package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/studylog/studylog-api/internal/config"
)

// scanBatch bounds how many keys one SCAN iteration may return.
const scanBatch = 200

// RedisStore implements Store on a single go-redis client. The client is
// opened once at startup and shared process-wide; each logical operation is
// one round-trip, so concurrent use is safe.
type RedisStore struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection with a short
// ping. A failed ping is a startup failure, not something to degrade around.
func NewRedisStore(cfg config.Config, log zerolog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	return &RedisStore{rdb: rdb, log: log}, nil
}

// Client exposes the underlying go-redis client for callers that need
// server-side scripting (the rate limiter). Session and cache code goes
// through the Store interface instead.
func (s *RedisStore) Client() *redis.Client { return s.rdb }

// Close drains the connection; called on process shutdown.
func (s *RedisStore) Close() error {
	s.log.Info().Msg("redis connection closing")
	return s.rdb.Close()
}

// fail logs an operation failure with its key and passes the error through.
func (s *RedisStore) fail(op, key string, err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	s.log.Error().Str("op", op).Str("key", key).Err(err).Msg("redis command failed")
	return err
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", s.fail("GET", key, err)
	}
	return v, nil
}

func (s *RedisStore) GetDel(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil {
		return "", s.fail("GETDEL", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return s.fail("SET", key, err)
	}
	return nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, s.fail("DEL", keys[0], err)
	}
	return n, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, s.fail("EXISTS", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, s.fail("EXPIRE", key, err)
	}
	return ok, nil
}

func (s *RedisStore) ExpireInDays(ctx context.Context, key string, days int) (bool, error) {
	return s.Expire(ctx, key, time.Duration(days)*24*time.Hour)
}

func (s *RedisStore) TTLSeconds(ctx context.Context, key string) (int64, error) {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, s.fail("TTL", key, err)
	}
	// go-redis reports the Redis sentinels -1/-2 as -1s/-2s.
	if d < 0 {
		return int64(d / time.Second), nil
	}
	return int64(d.Seconds()), nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, s.fail("INCR", key, err)
	}
	return n, nil
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, by int64) (int64, error) {
	n, err := s.rdb.IncrBy(ctx, key, by).Result()
	if err != nil {
		return 0, s.fail("INCRBY", key, err)
	}
	return n, nil
}

func (s *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Decr(ctx, key).Result()
	if err != nil {
		return 0, s.fail("DECR", key, err)
	}
	return n, nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := s.rdb.HGet(ctx, key, field).Result()
	if err != nil {
		return "", s.fail("HGET", key, err)
	}
	return v, nil
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	if err := s.rdb.HSet(ctx, key, field, value).Err(); err != nil {
		return s.fail("HSET", key, err)
	}
	return nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.fail("HGETALL", key, err)
	}
	return m, nil
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	n, err := s.rdb.HDel(ctx, key, fields...).Result()
	if err != nil {
		return 0, s.fail("HDEL", key, err)
	}
	return n, nil
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.rdb.SAdd(ctx, key, args...).Err(); err != nil {
		return s.fail("SADD", key, err)
	}
	return nil
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.rdb.SRem(ctx, key, args...).Err(); err != nil {
		return s.fail("SREM", key, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	ms, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, s.fail("SMEMBERS", key, err)
	}
	return ms, nil
}

func (s *RedisStore) ScanDel(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, s.fail("SCAN", pattern, err)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, s.fail("DEL", keys[0], err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
