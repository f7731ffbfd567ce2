package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "submissionsapi-ratelimit-"
	window    = time.Minute
	// bound on a single redis round trip so a slow redis cannot stall requests
	redisTimeout = 2 * time.Second
)

// Fixed window request counter shared by every api instance.
// Satisfies echo's middleware.RateLimiterStore.
type RedisLimiterStore struct {
	db         *redis.Client
	limiterKey string
	perMinute  int64
	failOpen   bool
}

type RedisLimiterConfig struct {
	RedisClient *redis.Client
	LimiterKey  string
	PerMinute   int64
	// Allow requests through when redis cannot be reached
	FailOpen bool
}

func (store *RedisLimiterStore) key(identifier string) string {
	return keyPrefix + store.limiterKey + "-" + identifier
}

func (store *RedisLimiterStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	key := store.key(identifier)

	// INCR and EXPIRE NX in one transaction, the window starts at the first request
	pipe := store.db.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return store.failOpen, err
	}

	return count.Val() <= store.perMinute, nil
}

func NewRedisLimitStore(config RedisLimiterConfig) *RedisLimiterStore {
	return &RedisLimiterStore{
		perMinute:  config.PerMinute,
		db:         config.RedisClient,
		limiterKey: config.LimiterKey,
		failOpen:   config.FailOpen,
	}
}
