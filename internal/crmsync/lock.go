package crmsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides a best-effort mutual exclusion across API instances.
type Locker interface {
	// TryLock returns a release token when the key was free.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX and a compare-and-delete release.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client) *RedisLocker {
	if client == nil {
		panic("crmsync: redis client cannot be nil")
	}
	return &RedisLocker{client: client, prefix: "lead-sync:lock:"}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("crmsync: acquire lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("crmsync: release lock: %w", err)
	}
	return nil
}
