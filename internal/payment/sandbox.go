package payment

import (
	"context"
	"fmt"
	"strings"
)

// DeclineToken is refused by the sandbox gateway.
const DeclineToken = "tok_declined"

// Sandbox confirms every well-formed charge without contacting a provider.
type Sandbox struct{}

func (Sandbox) Charge(ctx context.Context, charge Charge) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if err := charge.validate(); err != nil {
		return Receipt{}, err
	}
	if charge.Token == DeclineToken {
		return Receipt{}, fmt.Errorf("%w: sandbox decline", ErrDeclined)
	}
	hash := charge.key()
	return Receipt{
		Reference:   "sbx_" + strings.ToLower(hash[:16]),
		AmountMinor: charge.AmountMinor,
		Currency:    charge.Currency,
	}, nil
}
