package booking

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transferrer moves value to a user. It is only used for refunds.
// A returned error aborts the cancellation that requested the transfer.
type Transferrer interface {
	Transfer(ctx context.Context, to Identity, amount decimal.Decimal) error
}

// TransferFunc adapts a function to Transferrer.
type TransferFunc func(ctx context.Context, to Identity, amount decimal.Decimal) error

func (f TransferFunc) Transfer(ctx context.Context, to Identity, amount decimal.Decimal) error {
	return f(ctx, to, amount)
}

type acceptAll struct{}

func (acceptAll) Transfer(context.Context, Identity, decimal.Decimal) error { return nil }
