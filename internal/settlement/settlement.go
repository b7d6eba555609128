// Package settlement turns bets into balance mutations. Every round debits
// first, draws its outcome once, credits the payout and only then hands a
// Result to whatever renders it.
package settlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
)

// State is a round lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateCommitted State = "committed"
	StateResolved  State = "resolved"

	// progressive rounds
	StateSetup     State = "setup"
	StateActive    State = "active"
	StateBusted    State = "busted"
	StateCashedOut State = "cashed_out"
)

// Wallet is the part of the ledger settlement needs.
type Wallet interface {
	Balance() decimal.Decimal
	Debit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
}

// Observer is told about every state change and every settled round.
type Observer interface {
	Transition(game games.Kind, from, to State)
	Settled(res Result)
}

// HistoryRecorder stores settled rounds. A failed write is logged; the
// balance has already moved by then and stays moved.
type HistoryRecorder interface {
	RecordRound(ctx context.Context, res Result) error
}

// Result is the settled record of one round.
type Result struct {
	RoundID        string          `json:"round_id"`
	Game           games.Kind      `json:"game"`
	Bet            decimal.Decimal `json:"bet"`
	ExtraStake     decimal.Decimal `json:"extra_stake"`
	Payout         decimal.Decimal `json:"payout"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	Win            bool            `json:"win"`
	Outcome        games.Outcome   `json:"outcome"`
	Nonce          *uint64         `json:"nonce,omitempty"`
	ServerSeedHash string          `json:"server_seed_hash,omitempty"`
	ClientSeed     string          `json:"client_seed,omitempty"`
	Message        string          `json:"message"`
	SettledAt      time.Time       `json:"settled_at"`
	// PayoutPending is set when the payout credit failed; the amount is
	// held and credited before the next round.
	PayoutPending bool `json:"payout_pending,omitempty"`
}

// Net is the balance change caused by the round.
func (r Result) Net() decimal.Decimal {
	return r.BalanceAfter.Sub(r.BalanceBefore)
}

// Options wires a settlement to its collaborators. Wallet and Source are
// required.
type Options struct {
	Wallet    Wallet
	Source    engine.Source
	KV        ledger.KV
	CasinoID  string
	History   HistoryRecorder
	Observers []Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// fairness is implemented by sources whose draws can be replayed.
type fairness interface {
	Nonce() uint64
	ServerSeedHash() string
	ClientSeed() string
}

type fairProof struct {
	nonce      *uint64
	serverHash string
	clientSeed string
}

// base carries what every settlement shares. mu guards the busy flag and
// the per-settlement round state.
type base struct {
	mu        sync.Mutex
	busy      bool
	wallet    Wallet
	src       engine.Source
	kv        ledger.KV
	casinoID  string
	history   HistoryRecorder
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

func newBase(opts Options, component string) base {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return base{
		wallet:    opts.Wallet,
		src:       opts.Source,
		kv:        opts.KV,
		casinoID:  opts.CasinoID,
		history:   opts.History,
		observers: opts.Observers,
		logger:    logger.With("component", component),
		now:       now,
	}
}

// begin claims the settlement for one round.
func (b *base) begin() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy {
		return false
	}
	b.busy = true
	return true
}

func (b *base) end() {
	b.mu.Lock()
	b.busy = false
	b.mu.Unlock()
}

// advance moves a seeded source to a fresh nonce so that every round can
// be verified on its own. The nonce is marked in the KV before any draw;
// when the mark cannot be written the round must not go ahead.
func (b *base) advance(ctx context.Context) (fairProof, error) {
	a, ok := b.src.(engine.Advancer)
	if !ok {
		return fairProof{}, nil
	}
	markMu.Lock()
	defer markMu.Unlock()
	n := a.Advance()
	f, ok := b.src.(fairness)
	if !ok {
		return fairProof{}, nil
	}
	proof := fairProof{nonce: &n, serverHash: f.ServerSeedHash(), clientSeed: f.ClientSeed()}
	if b.kv != nil {
		if err := storeNonceMark(ctx, b.kv, b.casinoID, NonceMark{ServerSeedHash: proof.serverHash, Nonce: n}); err != nil {
			b.logger.Error("nonce mark write failed", "nonce", n, "error", err)
			return fairProof{}, err
		}
	}
	return proof, nil
}

func (b *base) transition(game games.Kind, from, to State) {
	for _, o := range b.observers {
		o.Transition(game, from, to)
	}
}

// finish stamps, records and publishes a settled round.
func (b *base) finish(ctx context.Context, res *Result, proof fairProof) {
	if res.RoundID == "" {
		res.RoundID = uuid.NewString()
	}
	res.Nonce = proof.nonce
	res.ServerSeedHash = proof.serverHash
	res.ClientSeed = proof.clientSeed
	res.SettledAt = b.now().UTC()
	if res.Message == "" {
		res.Message = resultMessage(*res)
	}

	if b.history != nil {
		if err := b.history.RecordRound(ctx, *res); err != nil {
			b.logger.Warn("round history write failed", "round_id", res.RoundID, "game", res.Game, "error", err)
		}
	}
	for _, o := range b.observers {
		o.Settled(*res)
	}
	b.logger.Info("round settled",
		"round_id", res.RoundID,
		"game", res.Game,
		"bet", res.Bet.StringFixed(2),
		"payout", res.Payout.StringFixed(2),
		"balance", res.BalanceAfter.StringFixed(2))
}

// payoutFor applies a float factor to a bet and rounds to cents.
func payoutFor(bet decimal.Decimal, factor float64) decimal.Decimal {
	if factor <= 0 {
		return decimal.Zero
	}
	return ledger.Round(bet.Mul(decimal.NewFromFloat(factor)))
}
