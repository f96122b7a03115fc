package payout_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/slot-engine/payout"
)

func TestBook_Unlimited(t *testing.T) {
	book := payout.NewBook()
	ctx := context.Background()

	require.NoError(t, book.Transfer(ctx, "alice", decimal.NewFromInt(500)))
	require.NoError(t, book.Transfer(ctx, "alice", decimal.NewFromInt(250)))
	require.NoError(t, book.Transfer(ctx, "bob", decimal.NewFromInt(1)))

	assert.True(t, book.Balance("alice").Equal(decimal.NewFromInt(750)))
	assert.True(t, book.Balance("carol").IsZero())
	_, limited := book.Reserve()
	assert.False(t, limited)

	history := book.History()
	require.Len(t, history, 3)
	assert.Equal(t, payout.Entry{To: "bob", Amount: decimal.NewFromInt(1)}, history[2])
}

func TestBook_ReserveLimitsPayouts(t *testing.T) {
	// GIVEN: A reserve of 600
	// WHEN: Paying 500 then another 500
	// THEN: The second transfer fails and changes nothing

	book := payout.NewBook(payout.WithReserve(decimal.NewFromInt(600)))
	ctx := context.Background()

	require.NoError(t, book.Transfer(ctx, "alice", decimal.NewFromInt(500)))
	err := book.Transfer(ctx, "bob", decimal.NewFromInt(500))
	assert.ErrorIs(t, err, payout.ErrInsufficientReserve)

	left, limited := book.Reserve()
	assert.True(t, limited)
	assert.True(t, left.Equal(decimal.NewFromInt(100)))
	assert.True(t, book.Balance("bob").IsZero())
	assert.Len(t, book.History(), 1)

	book.Fund(decimal.NewFromInt(400))
	require.NoError(t, book.Transfer(ctx, "bob", decimal.NewFromInt(500)))
	left, _ = book.Reserve()
	assert.True(t, left.IsZero())
}

func TestBook_RejectsNonPositiveAmounts(t *testing.T) {
	book := payout.NewBook()

	assert.ErrorIs(t, book.Transfer(context.Background(), "alice", decimal.Zero), payout.ErrInvalidAmount)
	assert.ErrorIs(t, book.Transfer(context.Background(), "alice", decimal.NewFromInt(-3)), payout.ErrInvalidAmount)
	assert.Empty(t, book.History())
}

func TestBook_FundUnlimitedIsNoop(t *testing.T) {
	book := payout.NewBook()
	book.Fund(decimal.NewFromInt(100))

	_, limited := book.Reserve()
	assert.False(t, limited)
}
