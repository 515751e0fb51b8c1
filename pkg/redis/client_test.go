package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smartshop-backend/pkg/config"
)

func newMiniredisClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestFixedWindowAllowCountsAndResets(t *testing.T) {
	ctx := context.Background()
	client, mr := newMiniredisClient(t)

	for i := 1; i <= 2; i++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "checkout:user-1", 2, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
		require.EqualValues(t, i, count)
	}
	allowed, count, err := client.FixedWindowAllow(ctx, "checkout:user-1", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)
	require.EqualValues(t, 3, count)

	ttl := mr.TTL("ss:rate_limit:checkout:user-1")
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)

	mr.FastForward(time.Minute + time.Second)

	allowed, count, err = client.FixedWindowAllow(ctx, "checkout:user-1", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 1, count)
}

func TestFixedWindowScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	client, _ := newMiniredisClient(t)

	_, _, err := client.FixedWindowAllow(ctx, "checkout:user-1", 1, time.Minute)
	require.NoError(t, err)
	allowed, count, err := client.FixedWindowAllow(ctx, "checkout:user-2", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 1, count)
}

func TestFixedWindowRejectsZeroWindow(t *testing.T) {
	client, _ := newMiniredisClient(t)
	_, _, err := client.FixedWindowAllow(context.Background(), "s", 1, 0)
	require.Error(t, err)
}

func TestSetNXGetDel(t *testing.T) {
	ctx := context.Background()
	client, _ := newMiniredisClient(t)

	key := client.LockKey("cron:dev")
	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "owner-a", got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	client, mr := newMiniredisClient(t)
	require.NoError(t, mr.Set("ss:lock:cron", "worker-1/01J"))

	deleted, err := client.CompareAndDelete(ctx, "ss:lock:cron", "worker-2/01K")
	require.NoError(t, err)
	require.False(t, deleted)
	require.True(t, mr.Exists("ss:lock:cron"))

	deleted, err = client.CompareAndDelete(ctx, "ss:lock:cron", "worker-1/01J")
	require.NoError(t, err)
	require.True(t, deleted)
	require.False(t, mr.Exists("ss:lock:cron"))

	deleted, err = client.CompareAndDelete(ctx, "ss:lock:cron", "worker-1/01J")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "ss:idempotency:user:u1:POST /api/v1/checkout:k1", client.IdempotencyKey("user:u1:POST /api/v1/checkout", "k1"))
	require.Equal(t, "ss:rate_limit:scope", client.RateLimitKey(" scope "))
	require.Equal(t, "ss:lock:cron", client.LockKey("cron"))
	require.Equal(t, "ss:idempotency:evt:notify", client.IdempotencyKey("evt:notify", ""))
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	require.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, err := client.Get(ctx, "k")
	require.ErrorIs(t, err, errNotInitialized)
	_, _, err = client.FixedWindowAllow(ctx, "s", 1, time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:pw@cache.internal:6380/3",
		DB:          1,
		PoolSize:    25,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, "cache.internal:6380", opts.Addr)
	require.Equal(t, "pw", opts.Password)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 25, opts.PoolSize)
	require.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	_, err = optionsFromConfig(config.RedisConfig{URL: "http://nope"})
	require.Error(t, err)
}
