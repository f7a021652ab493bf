package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisLockKeyPrefix   = "stash:lock:"
	defaultRedisLeaseTTL = 30 * time.Second
	minRedisPoll         = 2 * time.Millisecond
	maxRedisPoll         = 50 * time.Millisecond
)

// Deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Redis is a cross-process lock built on SET NX PX. The lease TTL bounds how
// long a crashed holder can block others.
type Redis struct {
	client   *redis.Client
	leaseTTL time.Duration
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithLeaseTTL overrides how long an unreleased lock survives.
func WithLeaseTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.leaseTTL = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, leaseTTL: defaultRedisLeaseTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, key string) (Lease, error) {
	redisKey := redisLockKeyPrefix + key
	token := uuid.NewString()
	wait := minRedisPoll
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.leaseTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, timeoutError(key, ctx.Err())
			}
			return nil, unavailableError(key, "set", err)
		}
		if ok {
			return &redisLease{client: r.client, key: redisKey, token: token}, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, timeoutError(key, ctx.Err())
		case <-timer.C:
		}
		wait = min(wait*2, maxRedisPoll)
	}
}

type redisLease struct {
	once   sync.Once
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		err = releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	})
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
