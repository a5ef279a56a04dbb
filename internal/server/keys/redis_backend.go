package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	defaultRedisLockTTL   = 30 * time.Second
	defaultRedisLockRetry = 50 * time.Millisecond
	redisReleaseTimeout   = 2 * time.Second
)

var errLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the lock only if it still carries our owner token,
// so an expired-and-retaken lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisBackend stores key material as Redis strings under a prefix and locks
// with SET NX PX. The lock TTL only matters when a holder dies mid-generation.
type RedisBackend struct {
	client     redis.UniversalClient
	prefix     string
	lockTTL    time.Duration
	retryDelay time.Duration
}

func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{
		client:     client,
		prefix:     prefix,
		lockTTL:    defaultRedisLockTTL,
		retryDelay: defaultRedisLockRetry,
	}
}

func (b *RedisBackend) key(name string) string {
	return b.prefix + name
}

func (b *RedisBackend) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", common.ErrKeyNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return data, nil
}

func (b *RedisBackend) Put(ctx context.Context, name string, data []byte) error {
	if err := b.client.Set(ctx, b.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (b *RedisBackend) Lock(ctx context.Context, name string) (func() error, error) {
	lockKey := b.key(name + ".lock")
	owner := uuid.NewString()

	err := retry.Do(ctx, retry.NewConstant(b.retryDelay), func(ctx context.Context) error {
		ok, err := b.client.SetNX(ctx, lockKey, owner, b.lockTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		if !ok {
			return retry.RetryableError(errLockHeld)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrKeyLockTimeout, name, err)
		}
		return nil, fmt.Errorf("redis lock %s: %w", name, err)
	}

	unlock := func() error {
		rctx, cancel := context.WithTimeout(context.Background(), redisReleaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, b.client, []string{lockKey}, owner).Err(); err != nil {
			return fmt.Errorf("redis unlock %s: %w", name, err)
		}
		return nil
	}
	return unlock, nil
}
