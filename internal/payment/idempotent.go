package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

type keyValue interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Idempotent remembers confirmed charges per (method, token, key) so a retried
// request reuses the earlier receipt instead of charging twice. It never
// refunds.
type Idempotent struct {
	next       Gateway
	kv         keyValue
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewIdempotent(next Gateway, kv keyValue, ttl, pendingTTL time.Duration) *Idempotent {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if pendingTTL <= 0 {
		pendingTTL = time.Minute
	}
	return &Idempotent{next: next, kv: kv, ttl: ttl, pendingTTL: pendingTTL}
}

func (g *Idempotent) Charge(ctx context.Context, charge Charge) (Receipt, error) {
	if err := charge.validate(); err != nil {
		return Receipt{}, err
	}
	key := chargeKey(charge)

	receipt, found, err := g.lookup(ctx, key, charge)
	if err != nil || found {
		return receipt, err
	}

	ok, err := g.kv.SetNX(ctx, key, pendingMarker, g.pendingTTL).Result()
	if err != nil {
		return Receipt{}, fmt.Errorf("idempotency reserve: %w", err)
	}
	if !ok {
		receipt, found, err := g.lookup(ctx, key, charge)
		if err != nil || found {
			return receipt, err
		}
		return Receipt{}, ErrChargeInFlight
	}

	receipt, err = g.next.Charge(ctx, charge)
	if err != nil {
		_ = g.kv.Del(context.WithoutCancel(ctx), key).Err()
		return Receipt{}, err
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return receipt, nil
	}
	// The charge already went through; a failed write only loses replay protection.
	_ = g.kv.Set(context.WithoutCancel(ctx), key, data, g.ttl).Err()
	return receipt, nil
}

func (g *Idempotent) lookup(ctx context.Context, key string, charge Charge) (Receipt, bool, error) {
	value, err := g.kv.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Receipt{}, false, nil
	}
	if err != nil {
		return Receipt{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if value == pendingMarker {
		return Receipt{}, false, ErrChargeInFlight
	}
	var receipt Receipt
	if err := json.Unmarshal([]byte(value), &receipt); err != nil {
		return Receipt{}, false, fmt.Errorf("idempotency decode: %w", err)
	}
	if receipt.AmountMinor != charge.AmountMinor || receipt.Currency != charge.Currency {
		return Receipt{}, false, fmt.Errorf("%w: token already charged for a different amount", ErrInvalidCharge)
	}
	return receipt, true, nil
}

func chargeKey(charge Charge) string {
	return "payment_charge:" + charge.key()
}
