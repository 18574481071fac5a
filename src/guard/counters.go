package guard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the shared mutable state behind rate limiting and fraud
// heuristics. Increments must be atomic server-side operations, never
// read-modify-write from the caller.
type CounterStore interface {
	// Increment bumps a fixed-window counter, arming the window expiry on
	// the first hit, and returns the new count.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	// AddMember adds member to a set with the same expiry discipline and
	// returns the resulting cardinality.
	AddMember(ctx context.Context, key, member string, window time.Duration) (int64, error)
	// CountMembers returns the cardinality of a set without mutating it.
	CountMembers(ctx context.Context, key string) (int64, error)
	// Current reads a counter without bumping it, zero when absent.
	Current(ctx context.Context, key string) (int64, error)
}

type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (s *RedisCounterStore) AddMember(ctx context.Context, key, member string, window time.Duration) (int64, error) {
	added, err := s.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return 0, err
	}
	if added > 0 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return s.client.SCard(ctx, key).Result()
}

func (s *RedisCounterStore) CountMembers(ctx context.Context, key string) (int64, error) {
	return s.client.SCard(ctx, key).Result()
}

func (s *RedisCounterStore) Current(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
