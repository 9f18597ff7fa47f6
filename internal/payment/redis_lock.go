package payment

import (
	"context"
	"errors"
	"time"

	"gopay-checkout/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisLockPrefix    = "gopay:create-lock:"
	defaultLockTTL     = 30 * time.Second
	defaultLockBackoff = 50 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker extends the in-process session lock across instances sharing a
// Redis. The TTL must outlive a GoPay create round trip.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	backoff time.Duration
	local   *sessionLocks
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client:  client,
		ttl:     ttl,
		backoff: defaultLockBackoff,
		local:   newSessionLocks(),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	// Waiters of this process queue locally so only one of them polls Redis.
	unlockLocal, err := l.local.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := redisLockPrefix + sessionID.String()
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-time.After(l.backoff):
		}
	}

	return func() {
		defer unlockLocal()

		// The caller's context may be done by now.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			logger.L().Warn("failed to release session lock",
				zap.String("session_id", sessionID.String()),
				zap.Error(err),
			)
		}
	}, nil
}
