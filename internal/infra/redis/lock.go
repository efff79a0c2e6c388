// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"petcare-billing/internal/domain"
	"petcare-billing/internal/domain/ports/adapter"
)

var _ adapter.InFlightGuard = (*RedisLocker)(nil)

// RedisLocker is a single-instance SET NX lock. A held lock is reported
// immediately; duplicate submissions are rejected rather than queued.
type RedisLocker struct {
	cli    *redis.Client
	prefix string
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, prefix: "lock:payment:"}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: acquire lock: %v", domain.ErrOperationFailed, err)
	}
	if !ok {
		return "", domain.ErrDuplicateInFlight
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases the lock only if token still owns it.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{l.prefix + key}, token).Result()
	return err
}
