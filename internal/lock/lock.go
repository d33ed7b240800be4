// Package lock serializes critical sections per key, either in-process or
// across instances through redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be taken in time.
var ErrNotAcquired = errors.New("lock: not acquired")

// Unlock releases an acquired lock.
type Unlock func()

// Locker hands out exclusive per-key locks.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// RedisLocker implements Locker with SET NX leases.
type RedisLocker struct {
	Redis   *redis.Client
	TTL     time.Duration
	Backoff time.Duration
	MaxWait time.Duration
}

// NewRedisLocker creates a redis-backed locker.
func NewRedisLocker(rdb *redis.Client, ttl, backoff, maxWait time.Duration) *RedisLocker {
	return &RedisLocker{Redis: rdb, TTL: ttl, Backoff: backoff, MaxWait: maxWait}
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, l.MaxWait)
	defer cancel()

	for {
		ok, err := l.Redis.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				// A fresh context: the caller's may already be done.
				releaseScript.Run(context.Background(), l.Redis, []string{key}, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-time.After(l.Backoff):
		}
	}
}

// LocalLocker implements Locker for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}
}
