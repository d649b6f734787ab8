package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dyfav/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "dyfav:lock:"
	defaultTTL   = 5 * time.Minute
	pollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every process using the same Redis server.
// Locks expire after ttl so a crashed holder cannot block an item forever.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewRedis creates a Redis-backed locker
func NewRedis(rdb *redis.Client, ttl time.Duration, log logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: log}
}

// Lock polls until key is acquired or ctx is done
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must not depend on the caller's possibly cancelled context.
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, r.rdb, []string{redisKey}, token).Err(); err != nil {
				r.logger.WithError(err).WarnWithFields("Failed to release item lock", map[string]interface{}{
					"key": key,
				})
			}
		})
	}, nil
}

// Close closes the Redis client
func (r *Redis) Close() error {
	return r.rdb.Close()
}
