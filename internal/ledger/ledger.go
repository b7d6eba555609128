// Package ledger holds the player's balance and persists every mutation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrPersistence         = errors.New("balance could not be persisted")
	// ErrNotFound is returned by KV implementations for a missing key.
	ErrNotFound = errors.New("key not found")
)

// KeyPrefix is prepended to the casino id to form the balance key.
const KeyPrefix = "playerBalance_"

// KV is the persistence collaborator: a string key-value store.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Ledger is a single account. All amounts are rounded half away from zero
// to two decimal places after every mutation.
type Ledger struct {
	mu       sync.Mutex
	kv       KV
	key      string
	casinoID string
	balance  decimal.Decimal
	logger   *slog.Logger
}

// Open loads the balance for casinoID, seeding it with defaultBalance when
// nothing has been stored yet.
func Open(ctx context.Context, kv KV, casinoID string, defaultBalance decimal.Decimal, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		kv:       kv,
		key:      KeyPrefix + casinoID,
		casinoID: casinoID,
		logger:   logger.With("component", "ledger", "casino_id", casinoID),
	}

	raw, err := kv.Get(ctx, l.key)
	switch {
	case errors.Is(err, ErrNotFound):
		l.balance = Round(defaultBalance)
		if err := kv.Set(ctx, l.key, l.balance.StringFixed(2)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		l.logger.Info("account created", "balance", l.balance.StringFixed(2))
	case err != nil:
		return nil, fmt.Errorf("load balance: %w", err)
	default:
		bal, perr := decimal.NewFromString(raw)
		if perr != nil {
			return nil, fmt.Errorf("stored balance %q is not a number: %w", raw, perr)
		}
		if bal.IsNegative() {
			return nil, fmt.Errorf("stored balance %s is negative", raw)
		}
		l.balance = Round(bal)
	}
	return l, nil
}

// Round rounds to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CasinoID identifies the account.
func (l *Ledger) CasinoID() string { return l.casinoID }

// Balance returns the current balance.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// CanAfford reports whether amount could be debited right now.
func (l *Ledger) CanAfford(amount decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Round(amount).LessThanOrEqual(l.balance)
}

// Debit removes amount from the balance and returns the new balance.
func (l *Ledger) Debit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = Round(amount)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: debit of %s", ErrInvalidAmount, amount.StringFixed(2))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if amount.GreaterThan(l.balance) {
		return l.balance, fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, amount.StringFixed(2), l.balance.StringFixed(2))
	}
	return l.apply(ctx, l.balance.Sub(amount))
}

// Credit adds amount to the balance and returns the new balance. A zero
// credit is a no-op.
func (l *Ledger) Credit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = Round(amount)
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: credit of %s", ErrInvalidAmount, amount.StringFixed(2))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if amount.IsZero() {
		return l.balance, nil
	}
	return l.apply(ctx, l.balance.Add(amount))
}

// apply persists next and swaps it in; the caller holds mu. On a storage
// error the balance is left untouched.
func (l *Ledger) apply(ctx context.Context, next decimal.Decimal) (decimal.Decimal, error) {
	next = Round(next)
	if err := l.kv.Set(ctx, l.key, next.StringFixed(2)); err != nil {
		l.logger.Error("balance write failed", "error", err, "balance", l.balance.StringFixed(2), "attempted", next.StringFixed(2))
		return l.balance, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	l.logger.Debug("balance updated", "from", l.balance.StringFixed(2), "to", next.StringFixed(2))
	l.balance = next
	return next, nil
}
