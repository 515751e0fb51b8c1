package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/smartshop-backend/pkg/redis"
)

const (
	markerInFlight = "inflight"
	markerDone     = "done"

	defaultClaimTTL = 5 * time.Minute
)

// State is the outcome of a Claim.
type State int

const (
	// Claimed means the caller owns the side effect and must Complete or Release.
	Claimed State = iota
	// InFlight means another worker claimed it and has not finished yet.
	InFlight
	// Done means the side effect already happened.
	Done
)

func (s State) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Guard makes an event side effect run at most once per consumer. A claim is a
// short-lived marker so a crashed worker does not block the event forever; a
// completed claim is kept for the retention TTL.
// Keys follow `ss:idempotency:evt:<consumer>:<event_id>`.
type Guard struct {
	store    redis.IdempotencyStore
	claimTTL time.Duration
	doneTTL  time.Duration
}

func NewGuard(store redis.IdempotencyStore, doneTTL time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if doneTTL < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	claimTTL := defaultClaimTTL
	if doneTTL > 0 && doneTTL < claimTTL {
		claimTTL = doneTTL
	}
	return &Guard{store: store, claimTTL: claimTTL, doneTTL: doneTTL}, nil
}

// Claim tries to take ownership of eventID for consumer.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (State, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return Claimed, err
	}
	ok, err := g.store.SetNX(ctx, key, markerInFlight, g.claimTTL)
	if err != nil {
		return Claimed, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return Claimed, nil
	}
	marker, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// expired between SETNX and GET; treat as someone else's claim
		return InFlight, nil
	case err != nil:
		return Claimed, fmt.Errorf("read %s: %w", key, err)
	case marker == markerDone:
		return Done, nil
	}
	return InFlight, nil
}

// Complete records that the side effect for eventID happened.
func (g *Guard) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, key, markerDone, g.doneTTL)
}

// Release drops a claim so a later delivery can retry.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
