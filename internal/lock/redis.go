package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker takes a SET NX PX lock per key and releases it only if the token still matches.
type RedisLocker struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retryEvery time.Duration
	logger     zerolog.Logger
}

// NewRedisLocker constructs a distributed locker. ttl bounds how long a crashed holder can block others.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	if prefix == "" {
		prefix = "actionlog:lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		retryEvery: 25 * time.Millisecond,
		logger:     logger.With().Str("component", "redis_lock").Logger(),
	}
}

// Acquire polls until the key is free, the context ends, or Redis fails.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Join(ErrNotAcquired, ctxErr)
			}
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn().Err(err).Str("key", redisKey).Msg("failed to release lock")
		}
	}, nil
}
