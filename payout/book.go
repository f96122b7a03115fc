/*
Package payout keeps an in-memory record of refunds paid to users.

PURPOSE:
  Book implements booking.Transferrer. It stands in for real settlement:
  each transfer credits the recipient's balance and draws down an
  optional reserve. When the reserve cannot cover a refund the transfer
  fails and the engine rolls the cancellation back.

USAGE:
  book := payout.NewBook(payout.WithReserve(decimal.NewFromInt(10_000)))
  engine := booking.NewEngine(store, cfg, booking.WithTransferrer(book))
*/
package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/slot-engine/booking"
)

var (
	ErrInsufficientReserve = errors.New("insufficient reserve")
	ErrInvalidAmount       = errors.New("invalid transfer amount")
)

// Book is safe for concurrent use.
type Book struct {
	mu       sync.Mutex
	reserve  *decimal.Decimal // nil = unlimited
	balances map[booking.Identity]decimal.Decimal
	history  []Entry
}

// Entry is one completed transfer.
type Entry struct {
	To     booking.Identity
	Amount decimal.Decimal
}

var _ booking.Transferrer = (*Book)(nil)

type Option func(*Book)

// WithReserve caps the total that can be paid out.
func WithReserve(amount decimal.Decimal) Option {
	return func(b *Book) { b.reserve = &amount }
}

func NewBook(opts ...Option) *Book {
	b := &Book{balances: make(map[booking.Identity]decimal.Decimal)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Book) Transfer(_ context.Context, to booking.Identity, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.reserve != nil {
		if b.reserve.LessThan(amount) {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientReserve, amount, b.reserve)
		}
		left := b.reserve.Sub(amount)
		b.reserve = &left
	}
	b.balances[to] = b.balances[to].Add(amount)
	b.history = append(b.history, Entry{To: to, Amount: amount})
	return nil
}

// Fund adds to the reserve. No-op on an unlimited book.
func (b *Book) Fund(amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserve == nil {
		return
	}
	topped := b.reserve.Add(amount)
	b.reserve = &topped
}

// Balance is the total refunded to id so far.
func (b *Book) Balance(id booking.Identity) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[id]
}

// Reserve reports the remaining reserve and whether one is set.
func (b *Book) Reserve() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserve == nil {
		return decimal.Zero, false
	}
	return *b.reserve, true
}

func (b *Book) History() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.history...)
}
