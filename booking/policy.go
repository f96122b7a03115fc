/*
policy.go - Cancellation refund tiers

PURPOSE:
  Maps the stake and the time left before a slot starts to the amount
  refunded on cancellation. The rest of the stake is forfeited.

DEFAULT TIERS:
  more than 30 minutes left      -> 50% of stake
  more than 10, at most 30       -> 75% of stake
  10 minutes or less             -> nothing

  Cancelling early refunds less than cancelling in the last half hour.
  This is intended.

ARITHMETIC:
  refund = floor(stake * percent / 100). Stakes are non-negative whole
  units, so truncation toward zero equals floor.
*/
package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier refunds Percent of the stake when more than Above remains.
type Tier struct {
	Above   time.Duration
	Percent int64
}

// CancellationPolicy is an ordered tier table, longest Above first.
// A time left that matches no tier refunds nothing.
type CancellationPolicy struct {
	Tiers []Tier
}

func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{Tiers: []Tier{
		{Above: 30 * time.Minute, Percent: 50},
		{Above: 10 * time.Minute, Percent: 75},
	}}
}

var hundred = decimal.NewFromInt(100)

// Refund computes the refund for stake with timeUntilSlot left.
// Negative durations (slot already started) are treated as zero.
func (p CancellationPolicy) Refund(stake decimal.Decimal, timeUntilSlot time.Duration) decimal.Decimal {
	if timeUntilSlot < 0 {
		timeUntilSlot = 0
	}
	if !stake.IsPositive() {
		return decimal.Zero
	}
	for _, t := range p.Tiers {
		if timeUntilSlot > t.Above {
			return stake.Mul(decimal.NewFromInt(t.Percent)).Div(hundred).Truncate(0)
		}
	}
	return decimal.Zero
}

// ComputeRefund applies the default tiers.
func ComputeRefund(stake decimal.Decimal, timeUntilSlot time.Duration) decimal.Decimal {
	return DefaultCancellationPolicy().Refund(stake, timeUntilSlot)
}
