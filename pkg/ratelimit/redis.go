package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore backs the limiter with Redis so multiple engine instances share
// one budget. INCR is atomic server-side, which satisfies the CounterStore
// contract without client-side locking.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL connects to Redis using a redis:// URL.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewRedisStore(redis.NewClient(opts)), nil
}

// Incr increments the counter and sets the expiry on first use.
func (s *RedisStore) Incr(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiry)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}

	return incr.Val(), nil
}
