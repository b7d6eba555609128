// Package promo credits bonus balance for promo codes. Codes are looked up
// by the SHA-256 hex digest of the trimmed input so the catalog never holds
// a plaintext code.
package promo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/ledger"
)

var (
	ErrEmptyCode       = errors.New("promo code is empty")
	ErrUnknownCode     = errors.New("invalid promo code")
	ErrAlreadyRedeemed = errors.New("promo code has already been redeemed")
	ErrExhausted       = errors.New("promo code has been exhausted")
)

const (
	RedeemedKeyPrefix = "redeemedPromoCodes_"
	GlobalUsesKey     = "promoGlobalUses"
)

// Kind decides how often a code can be used.
type Kind string

const (
	// OneTime codes are redeemable once per casino.
	OneTime Kind = "one-time"
	// Eternal codes never run out.
	Eternal Kind = "eternal"
	// Limited codes share a use count across every casino in the deployment.
	Limited Kind = "limited"
)

// Code is a catalog entry.
type Code struct {
	Amount decimal.Decimal
	Kind   Kind
	Uses   int
}

// Catalog maps code digests to entries.
type Catalog map[string]Code

// DefaultCatalog is the shipped code table.
func DefaultCatalog() Catalog {
	return Catalog{
		"1305821e52ea6ddaab2287207c5f9481b0a1b569b32ddfccf4a3da7cbefa0cf6": {Amount: decimal.NewFromInt(100), Kind: OneTime},
		"185f8db32271fe25f561a6fc938b2e264306ec304eda518007d1764826381969": {Amount: decimal.NewFromInt(1000), Kind: OneTime},
		"2ccb9b89c4b406a8b5b6535efa715bd8e8ab17f776895bf39ac5350995f97cd3": {Amount: decimal.NewFromInt(777777777), Kind: Eternal},
		"3abe29be638d9972468724407d3eec58c0d73adac7d3331a54469b3def4874b5": {Amount: decimal.NewFromInt(500), Kind: OneTime},
		"382e766581df7c496ef87244f943dedcd74d6b6aab8af8789df88a6a22d170eb": {Amount: decimal.NewFromInt(1000), Kind: Limited, Uses: 10},
		"4a892d8d889b8ac36ad05177e90d4ea4dfa53ccb6a7ca91581a0245e28ee7417": {Amount: decimal.NewFromInt(1000), Kind: Eternal},
		"33c41a45efcc036f175499ba11421fb67029ea6b71a273a77299fadbe9ebf931": {Amount: decimal.NewFromInt(100000), Kind: Eternal},
	}
}

// HashCode returns the catalog key for a code as typed by the player.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// Wallet is the ledger side of a redemption.
type Wallet interface {
	Credit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
}

// Redemption describes a successful redeem.
type Redemption struct {
	Hash    string          `json:"hash"`
	Kind    Kind            `json:"kind"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// Redeemer applies codes for a single casino.
type Redeemer struct {
	mu       sync.Mutex
	wallet   Wallet
	kv       ledger.KV
	casinoID string
	catalog  Catalog
	logger   *slog.Logger
}

func NewRedeemer(wallet Wallet, kv ledger.KV, casinoID string, catalog Catalog, logger *slog.Logger) *Redeemer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redeemer{
		wallet:   wallet,
		kv:       kv,
		casinoID: casinoID,
		catalog:  catalog,
		logger:   logger.With("component", "promo", "casino_id", casinoID),
	}
}

// Redeem credits the code's amount at most as often as its kind allows.
// The usage mark is written before the credit and restored if the credit
// fails, so a code is never spent without paying out.
func (r *Redeemer) Redeem(ctx context.Context, code string) (Redemption, error) {
	if strings.TrimSpace(code) == "" {
		return Redemption{}, ErrEmptyCode
	}
	hash := HashCode(code)
	entry, ok := r.catalog[hash]
	if !ok {
		return Redemption{}, ErrUnknownCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	undo, err := r.markUsed(ctx, hash, entry)
	if err != nil {
		return Redemption{}, err
	}

	balance, err := r.wallet.Credit(ctx, entry.Amount)
	if err != nil {
		if undo != nil {
			if uerr := undo(ctx); uerr != nil {
				r.logger.Error("failed to restore promo usage", "error", uerr)
			}
		}
		return Redemption{}, fmt.Errorf("credit promo: %w", err)
	}

	r.logger.Info("promo code redeemed", "kind", entry.Kind, "amount", entry.Amount.StringFixed(2))
	return Redemption{Hash: hash, Kind: entry.Kind, Amount: entry.Amount, Balance: balance}, nil
}

// Redeemed lists the digests of one-time codes this casino has used.
func (r *Redeemer) Redeemed(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, _, err := r.loadRedeemed(ctx)
	return list, err
}

// markUsed records one use and returns a function that reverts it.
func (r *Redeemer) markUsed(ctx context.Context, hash string, entry Code) (func(context.Context) error, error) {
	switch entry.Kind {
	case OneTime:
		list, raw, err := r.loadRedeemed(ctx)
		if err != nil {
			return nil, err
		}
		for _, h := range list {
			if h == hash {
				return nil, ErrAlreadyRedeemed
			}
		}
		key := RedeemedKeyPrefix + r.casinoID
		if err := r.setJSON(ctx, key, append(list, hash)); err != nil {
			return nil, err
		}
		return r.restore(key, raw), nil

	case Limited:
		uses, raw, err := r.loadGlobalUses(ctx)
		if err != nil {
			return nil, err
		}
		if uses[hash] >= entry.Uses {
			return nil, ErrExhausted
		}
		uses[hash]++
		if err := r.setJSON(ctx, GlobalUsesKey, uses); err != nil {
			return nil, err
		}
		return r.restore(GlobalUsesKey, raw), nil
	}
	return nil, nil
}

func (r *Redeemer) restore(key string, raw *string) func(context.Context) error {
	return func(ctx context.Context) error {
		if raw == nil {
			return r.kv.Delete(ctx, key)
		}
		return r.kv.Set(ctx, key, *raw)
	}
}

func (r *Redeemer) loadRedeemed(ctx context.Context) ([]string, *string, error) {
	raw, err := r.getRaw(ctx, RedeemedKeyPrefix+r.casinoID)
	if err != nil || raw == nil {
		return nil, raw, err
	}
	var list []string
	if err := json.Unmarshal([]byte(*raw), &list); err != nil {
		// every one-time code would become redeemable again
		r.logger.Error("unreadable redeemed codes", "error", err)
		return nil, raw, fmt.Errorf("%w: unreadable redeemed codes: %v", ledger.ErrPersistence, err)
	}
	return list, raw, nil
}

func (r *Redeemer) loadGlobalUses(ctx context.Context) (map[string]int, *string, error) {
	uses := map[string]int{}
	raw, err := r.getRaw(ctx, GlobalUsesKey)
	if err != nil || raw == nil {
		return uses, raw, err
	}
	if err := json.Unmarshal([]byte(*raw), &uses); err != nil {
		r.logger.Error("unreadable promo use counts", "error", err)
		return nil, raw, fmt.Errorf("%w: unreadable promo use counts: %v", ledger.ErrPersistence, err)
	}
	if uses == nil {
		uses = map[string]int{}
	}
	return uses, raw, nil
}

// getRaw returns nil for a missing key.
func (r *Redeemer) getRaw(ctx context.Context, key string) (*string, error) {
	raw, err := r.kv.Get(ctx, key)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
	}
	return &raw, nil
}

func (r *Redeemer) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
	}
	return nil
}
