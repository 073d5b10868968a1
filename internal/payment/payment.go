package payment

import (
	"context"
	"errors"

	"github.com/Darkpool645/alex-backend/internal/crypto"
)

var (
	ErrDeclined          = errors.New("payment_declined")
	ErrUnsupportedMethod = errors.New("unsupported_payment_method")
	ErrChargeInFlight    = errors.New("charge_in_flight")
	ErrInvalidCharge     = errors.New("invalid_charge")
)

// Charge describes one payment. IdempotencyKey scopes replay protection to
// the payer; the same token under another key is a separate charge.
type Charge struct {
	Method         string
	Token          string
	Currency       string
	AmountMinor    int64
	Description    string
	IdempotencyKey string
}

func (c Charge) key() string {
	return crypto.HashToken(c.Method + ":" + c.Token + ":" + c.IdempotencyKey)
}

func (c Charge) validate() error {
	if c.Method == "" || c.Token == "" || c.Currency == "" || c.AmountMinor <= 0 {
		return ErrInvalidCharge
	}
	return nil
}

type Receipt struct {
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// Gateway charges a payment instrument and confirms the charge. Callers
// treat it as a blocking call that is never retried automatically.
type Gateway interface {
	Charge(ctx context.Context, charge Charge) (Receipt, error)
}
