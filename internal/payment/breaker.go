package payment

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker stops calling a failing provider after trips consecutive upstream
// errors. Declines and invalid charges do not count as failures.
type Breaker struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Gateway, name string, trips uint32, openTimeout time.Duration) *Breaker {
	if trips == 0 {
		trips = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrDeclined) ||
				errors.Is(err, ErrInvalidCharge) ||
				errors.Is(err, ErrUnsupportedMethod) ||
				errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Charge(ctx context.Context, charge Charge) (Receipt, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Charge(ctx, charge)
	})
	if err != nil {
		return Receipt{}, err
	}
	return result.(Receipt), nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
