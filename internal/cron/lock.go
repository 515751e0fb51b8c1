package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 30 * time.Minute

// ErrLockLost reports that the lock expired and another holder took it
// before this run released it.
var ErrLockLost = errors.New("cron lock held by another instance")

// Lock serialises scheduled runs across worker instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock is a SETNX lease whose value names the holding instance.
type RedisLock struct {
	store  lockStore
	key    string
	ttl    time.Duration
	holder string
	token  string
}

// NewRedisLock builds a lease on key. holder identifies this process in the
// stored value so operators can see who owns a stuck lock.
func NewRedisLock(store lockStore, key string, ttl time.Duration, holder string) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if holder == "" {
		holder = "cron-worker"
	}
	return &RedisLock{store: store, key: key, ttl: ttl, holder: holder}, nil
}

// Acquire takes the lease when nobody holds it.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.holder + "/" + ulid.Make().String()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Holder returns the value currently stored under the lock key, or "" when free.
func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	value, err := l.store.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

// Release drops the lease if this process still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""

	deleted, err := l.store.CompareAndDelete(ctx, l.key, token)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if deleted {
		return nil
	}
	current, err := l.Holder(ctx)
	if err != nil {
		return fmt.Errorf("read lock holder: %w", err)
	}
	if current == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrLockLost, current)
}
