package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smartshop-backend/pkg/redis"
)

const consumer = "order-confirmation-email"

func newMiniGuard(t *testing.T, ttl time.Duration) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	guard, err := NewGuard(redis.NewWithClient(client), ttl)
	require.NoError(t, err)
	return guard, mr
}

func TestGuardLifecycle(t *testing.T) {
	guard, mr := newMiniGuard(t, 24*time.Hour)
	ctx := context.Background()
	orderID := uuid.New()
	key := "ss:idempotency:evt:" + consumer + ":" + orderID.String()

	state, err := guard.Claim(ctx, consumer, orderID)
	require.NoError(t, err)
	require.Equal(t, Claimed, state)
	require.Equal(t, defaultClaimTTL, mr.TTL(key))

	state, err = guard.Claim(ctx, consumer, orderID)
	require.NoError(t, err)
	require.Equal(t, InFlight, state)

	require.NoError(t, guard.Complete(ctx, consumer, orderID))
	require.Equal(t, 24*time.Hour, mr.TTL(key))

	state, err = guard.Claim(ctx, consumer, orderID)
	require.NoError(t, err)
	require.Equal(t, Done, state)
}

func TestGuardReleaseAllowsRetry(t *testing.T) {
	guard, mr := newMiniGuard(t, time.Hour)
	ctx := context.Background()
	orderID := uuid.New()

	_, err := guard.Claim(ctx, consumer, orderID)
	require.NoError(t, err)
	require.NoError(t, guard.Release(ctx, consumer, orderID))
	require.False(t, mr.Exists("ss:idempotency:evt:"+consumer+":"+orderID.String()))

	state, err := guard.Claim(ctx, consumer, orderID)
	require.NoError(t, err)
	require.Equal(t, Claimed, state)
}

func TestGuardAbandonedClaimExpires(t *testing.T) {
	guard, mr := newMiniGuard(t, time.Hour)
	ctx := context.Background()
	orderID := uuid.New()

	_, err := guard.Claim(ctx, consumer, orderID)
	require.NoError(t, err)
	mr.FastForward(defaultClaimTTL + time.Second)

	state, err := guard.Claim(ctx, consumer, orderID)
	require.NoError(t, err)
	require.Equal(t, Claimed, state)
}

func TestGuardClaimTTLNeverExceedsDoneTTL(t *testing.T) {
	guard, err := NewGuard(mapStore{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, time.Minute, guard.claimTTL)
}

func TestGuardValidatesInput(t *testing.T) {
	_, err := NewGuard(nil, time.Hour)
	require.Error(t, err)
	_, err = NewGuard(mapStore{}, -time.Second)
	require.Error(t, err)

	guard, err := NewGuard(mapStore{}, time.Hour)
	require.NoError(t, err)
	_, err = guard.Claim(context.Background(), "", uuid.New())
	require.Error(t, err)
	_, err = guard.Claim(context.Background(), consumer, uuid.Nil)
	require.Error(t, err)
}

type brokenStore struct{ mapStore }

func (brokenStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestGuardPropagatesStoreErrors(t *testing.T) {
	guard, err := NewGuard(brokenStore{mapStore{}}, time.Hour)
	require.NoError(t, err)
	_, err = guard.Claim(context.Background(), consumer, uuid.New())
	require.ErrorContains(t, err, "connection refused")
}
