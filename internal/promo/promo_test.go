package promo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/casino-settle-go/internal/ledger"
)

type failingWallet struct{}

func (failingWallet) Credit(context.Context, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, ledger.ErrPersistence
}

func testCatalog() Catalog {
	return Catalog{
		HashCode("WELCOME100"): {Amount: decimal.NewFromInt(100), Kind: OneTime},
		HashCode("FOREVER"):    {Amount: decimal.NewFromInt(5), Kind: Eternal},
		HashCode("FIRST2"):     {Amount: decimal.NewFromInt(50), Kind: Limited, Uses: 2},
	}
}

func newTestRedeemer(t *testing.T, kv ledger.KV, casinoID string) (*Redeemer, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.Open(context.Background(), kv, casinoID, decimal.NewFromInt(1000), nil)
	require.NoError(t, err)
	return NewRedeemer(l, kv, casinoID, testCatalog(), nil), l
}

func TestHashCodeTrims(t *testing.T) {
	assert.Equal(t, HashCode("WELCOME100"), HashCode("  WELCOME100\n"))
	assert.NotEqual(t, HashCode("WELCOME100"), HashCode("welcome100"))
	assert.Len(t, HashCode("x"), 64)
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	assert.Len(t, cat, 7)
	for hash, code := range cat {
		assert.Len(t, hash, 64)
		assert.True(t, code.Amount.IsPositive(), hash)
		if code.Kind == Limited {
			assert.Equal(t, 10, code.Uses)
		}
	}
}

func TestRedeemOneTime(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemoryKV()
	r, l := newTestRedeemer(t, kv, "alpha")

	got, err := r.Redeem(ctx, " WELCOME100 ")
	require.NoError(t, err)
	assert.Equal(t, OneTime, got.Kind)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1100)))
	assert.True(t, l.Balance().Equal(decimal.NewFromInt(1100)))

	_, err = r.Redeem(ctx, "WELCOME100")
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)
	assert.True(t, l.Balance().Equal(decimal.NewFromInt(1100)))

	raw, err := kv.Get(ctx, "redeemedPromoCodes_alpha")
	require.NoError(t, err)
	var stored []string
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, []string{HashCode("WELCOME100")}, stored)

	list, err := r.Redeemed(ctx)
	require.NoError(t, err)
	assert.Equal(t, stored, list)
}

func TestOneTimeIsPerCasino(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemoryKV()
	alpha, _ := newTestRedeemer(t, kv, "alpha")
	beta, betaLedger := newTestRedeemer(t, kv, "beta")

	_, err := alpha.Redeem(ctx, "WELCOME100")
	require.NoError(t, err)
	_, err = beta.Redeem(ctx, "WELCOME100")
	require.NoError(t, err)
	assert.True(t, betaLedger.Balance().Equal(decimal.NewFromInt(1100)))
}

func TestRedeemEternal(t *testing.T) {
	ctx := context.Background()
	r, l := newTestRedeemer(t, ledger.NewMemoryKV(), "alpha")

	for i := 0; i < 5; i++ {
		_, err := r.Redeem(ctx, "FOREVER")
		require.NoError(t, err)
	}
	assert.True(t, l.Balance().Equal(decimal.NewFromInt(1025)))
}

func TestRedeemLimitedSharedAcrossCasinos(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemoryKV()
	alpha, alphaLedger := newTestRedeemer(t, kv, "alpha")
	beta, betaLedger := newTestRedeemer(t, kv, "beta")

	_, err := alpha.Redeem(ctx, "FIRST2")
	require.NoError(t, err)
	_, err = beta.Redeem(ctx, "FIRST2")
	require.NoError(t, err)

	_, err = alpha.Redeem(ctx, "FIRST2")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.True(t, alphaLedger.Balance().Equal(decimal.NewFromInt(1050)))
	assert.True(t, betaLedger.Balance().Equal(decimal.NewFromInt(1050)))

	raw, err := kv.Get(ctx, GlobalUsesKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+HashCode("FIRST2")+`":2}`, raw)
}

func TestRedeemRejectsUnknownAndEmpty(t *testing.T) {
	ctx := context.Background()
	r, l := newTestRedeemer(t, ledger.NewMemoryKV(), "alpha")

	_, err := r.Redeem(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrUnknownCode)
	_, err = r.Redeem(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyCode)
	assert.True(t, l.Balance().Equal(decimal.NewFromInt(1000)))
}

func TestFailedCreditRestoresUsage(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemoryKV()
	r := NewRedeemer(failingWallet{}, kv, "alpha", testCatalog(), nil)

	_, err := r.Redeem(ctx, "WELCOME100")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrPersistence))

	_, err = kv.Get(ctx, "redeemedPromoCodes_alpha")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = r.Redeem(ctx, "FIRST2")
	require.Error(t, err)
	_, err = kv.Get(ctx, GlobalUsesKey)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCorruptStateFailsClosed(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "redeemedPromoCodes_alpha", "not json"))
	require.NoError(t, kv.Set(ctx, GlobalUsesKey, "[]"))
	r, l := newTestRedeemer(t, kv, "alpha")

	_, err := r.Redeem(ctx, "WELCOME100")
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	_, err = r.Redeem(ctx, "FIRST2")
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	_, err = r.Redeemed(ctx)
	assert.ErrorIs(t, err, ledger.ErrPersistence)

	// eternal codes keep no state and still pay
	_, err = r.Redeem(ctx, "FOREVER")
	require.NoError(t, err)
	assert.True(t, l.Balance().Equal(decimal.NewFromInt(1005)))

	// the stored values are left for an operator to repair
	raw, err := kv.Get(ctx, "redeemedPromoCodes_alpha")
	require.NoError(t, err)
	assert.Equal(t, "not json", raw)
	raw, err = kv.Get(ctx, GlobalUsesKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestNullUseCountsReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := ledger.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, GlobalUsesKey, "null"))
	r, _ := newTestRedeemer(t, kv, "alpha")

	_, err := r.Redeem(ctx, "FIRST2")
	require.NoError(t, err)
}
