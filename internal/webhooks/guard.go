// Package webhooks holds the pieces shared by the provider webhook consumers.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/redis"
)

// Guard scopes.
const (
	ScopeProdigi = "prodigi-webhook"
	ScopeStripe  = "stripe-webhook"
	ScopeSquare  = "square-webhook"
)

// IdempotencyGuard is the Redis fast path in front of a consumer's durable
// delivery ledger. A key is set on first sight of an event id and removed
// again when processing fails, so the provider's redelivery is handled.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether eventID was already seen, marking it if not.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.Del(ctx, key)
}
