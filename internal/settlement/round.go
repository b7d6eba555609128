package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
)

const (
	// WheelKeyPrefix stores the unix-millisecond time of the last bonus spin.
	WheelKeyPrefix = "wheelLastSpin_"

	DefaultWheelCooldown = 60 * time.Minute
)

// RoundSettlement settles the single-draw games: Idle -> Committed ->
// Resolved -> Idle. A second bet while one is being settled is rejected.
type RoundSettlement struct {
	base
	registry *games.Registry
	cooldown time.Duration
	pending  []pendingPayout // guarded by mu
}

// NewRoundSettlement builds a settlement over registry. A zero cooldown
// falls back to DefaultWheelCooldown.
func NewRoundSettlement(opts Options, registry *games.Registry, cooldown time.Duration) *RoundSettlement {
	if registry == nil {
		registry = games.DefaultRegistry()
	}
	if cooldown <= 0 {
		cooldown = DefaultWheelCooldown
	}
	return &RoundSettlement{
		base:     newBase(opts, "round_settlement"),
		registry: registry,
		cooldown: cooldown,
	}
}

// Registry exposes the games this settlement accepts.
func (s *RoundSettlement) Registry() *games.Registry { return s.registry }

// PlaceBet debits amount, draws the outcome, takes any extra stake the
// outcome calls for and credits the payout, in that order. When the payout
// credit fails the round still settles: the Result is flagged
// PayoutPending and the amount is credited before the next round.
func (s *RoundSettlement) PlaceBet(ctx context.Context, kind games.Kind, amount decimal.Decimal, params map[string]any) (Result, error) {
	game, ok := s.registry.Get(kind)
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrUnknownGame, kind)
	}
	if game.Spec().Stakeless {
		return Result{}, fmt.Errorf("%w: %s takes no bet", games.ErrInvalidSelection, kind)
	}
	amount = ledger.Round(amount)
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: bet must be greater than zero", ledger.ErrInvalidAmount)
	}
	if err := game.Validate(params); err != nil {
		return Result{}, err
	}

	if !s.begin() {
		return Result{}, ErrRoundAlreadyInProgress
	}
	defer s.end()

	if err := s.payPending(ctx); err != nil {
		return Result{}, err
	}
	proof, err := s.advance(ctx)
	if err != nil {
		return Result{}, err
	}

	before := s.wallet.Balance()
	after, err := s.wallet.Debit(ctx, amount)
	if err != nil {
		return Result{}, err
	}
	s.transition(kind, StateIdle, StateCommitted)

	res := Result{
		RoundID:       uuid.NewString(),
		Game:          kind,
		Bet:           amount,
		ExtraStake:    decimal.Zero,
		Payout:        decimal.Zero,
		BalanceBefore: before,
	}

	out, err := game.Resolve(s.src, games.Stake{Bet: amount, Available: after}, params)
	if err != nil {
		// nothing was drawn that the player could have seen; give the stake back
		s.refund(ctx, res.RoundID, amount)
		s.transition(kind, StateCommitted, StateIdle)
		return Result{}, fmt.Errorf("resolve %s: %w", kind, err)
	}
	res.Win = out.Win
	res.Outcome = out

	if out.ExtraStake > 0 {
		extra := payoutFor(amount, out.ExtraStake)
		if after, err = s.wallet.Debit(ctx, extra); err != nil {
			// the second stake never landed, so the round is void
			s.refund(ctx, res.RoundID, amount)
			s.transition(kind, StateCommitted, StateIdle)
			return Result{}, fmt.Errorf("extra stake for %s: %w", kind, err)
		}
		res.ExtraStake = extra
	}

	res.Payout = payoutFor(amount, out.Factor)
	if res.Payout.IsPositive() {
		credited, err := s.wallet.Credit(ctx, res.Payout)
		if err != nil {
			s.logger.Error("payout credit failed, holding it as pending",
				"round_id", res.RoundID, "game", kind, "payout", res.Payout.StringFixed(2), "error", err)
			s.owe(res.RoundID, res.Payout)
			res.PayoutPending = true
		} else {
			after = credited
		}
	}
	res.BalanceAfter = after
	s.transition(kind, StateCommitted, StateResolved)

	s.finish(ctx, &res, proof)
	s.transition(kind, StateResolved, StateIdle)
	return res, nil
}

// SpinBonus spins the free wheel once per cooldown window.
func (s *RoundSettlement) SpinBonus(ctx context.Context) (Result, error) {
	game, ok := s.registry.Get(games.KindWheel)
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrUnknownGame, games.KindWheel)
	}

	if !s.begin() {
		return Result{}, ErrRoundAlreadyInProgress
	}
	defer s.end()

	next, err := s.bonusAvailableAt(ctx)
	if err != nil {
		return Result{}, err
	}
	now := s.now()
	if now.Before(next) {
		return Result{}, &CooldownError{Remaining: next.Sub(now)}
	}
	if err := s.payPending(ctx); err != nil {
		return Result{}, err
	}

	proof, err := s.advance(ctx)
	if err != nil {
		return Result{}, err
	}
	before := s.wallet.Balance()
	s.transition(games.KindWheel, StateIdle, StateCommitted)
	out, err := game.Resolve(s.src, games.Stake{Available: before}, nil)
	if err != nil {
		s.transition(games.KindWheel, StateCommitted, StateIdle)
		return Result{}, fmt.Errorf("resolve wheel: %w", err)
	}

	award := ledger.Round(decimal.NewFromFloat(out.Award))
	after, err := s.wallet.Credit(ctx, award)
	if err != nil {
		s.transition(games.KindWheel, StateCommitted, StateIdle)
		return Result{}, fmt.Errorf("credit wheel prize: %w", err)
	}
	if s.kv != nil {
		stamp := strconv.FormatInt(now.UnixMilli(), 10)
		if err := s.kv.Set(ctx, WheelKeyPrefix+s.casinoID, stamp); err != nil {
			s.logger.Warn("wheel cooldown not persisted", "error", err)
		}
	}
	s.transition(games.KindWheel, StateCommitted, StateResolved)

	res := Result{
		Game:          games.KindWheel,
		Bet:           decimal.Zero,
		ExtraStake:    decimal.Zero,
		Payout:        award,
		BalanceBefore: before,
		BalanceAfter:  after,
		Win:           true,
		Outcome:       out,
	}
	s.finish(ctx, &res, proof)
	s.transition(games.KindWheel, StateResolved, StateIdle)
	return res, nil
}

// PendingPayout is the total of payouts settled but not yet credited.
func (s *RoundSettlement) PendingPayout() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, p := range s.pending {
		total = total.Add(p.amount)
	}
	return total
}

// SettlePending credits held payouts without placing a bet.
func (s *RoundSettlement) SettlePending(ctx context.Context) error {
	if !s.begin() {
		return ErrRoundAlreadyInProgress
	}
	defer s.end()
	return s.payPending(ctx)
}

type pendingPayout struct {
	roundID string
	amount  decimal.Decimal
}

func (s *RoundSettlement) owe(roundID string, amount decimal.Decimal) {
	s.mu.Lock()
	s.pending = append(s.pending, pendingPayout{roundID: roundID, amount: amount})
	s.mu.Unlock()
}

// refund returns a stake for a void round. A refund that cannot be
// persisted is held with the pending payouts.
func (s *RoundSettlement) refund(ctx context.Context, roundID string, amount decimal.Decimal) {
	if _, err := s.wallet.Credit(ctx, amount); err != nil {
		s.logger.Error("stake refund failed, holding it as pending", "round_id", roundID, "amount", amount.StringFixed(2), "error", err)
		s.owe(roundID, amount)
	}
}

// payPending credits held amounts oldest first; the caller holds the busy
// flag. It stops at the first failure and leaves the rest held.
func (s *RoundSettlement) payPending(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return nil
		}
		p := s.pending[0]
		s.mu.Unlock()

		if _, err := s.wallet.Credit(ctx, p.amount); err != nil {
			return fmt.Errorf("pending payout for round %s: %w", p.roundID, err)
		}
		s.logger.Info("pending payout credited", "round_id", p.roundID, "amount", p.amount.StringFixed(2))

		s.mu.Lock()
		s.pending = s.pending[1:]
		s.mu.Unlock()
	}
}

// Available reports whether a free spin can be taken now, by the
// settlement's clock, and when the next one unlocks.
func (s *RoundSettlement) Available(ctx context.Context) (bool, time.Time, error) {
	at, err := s.bonusAvailableAt(ctx)
	if err != nil {
		return false, time.Time{}, err
	}
	return !s.now().Before(at), at, nil
}

// BonusAvailableAt returns when the next free spin unlocks. A time in the
// past means a spin is available now.
func (s *RoundSettlement) BonusAvailableAt(ctx context.Context) (time.Time, error) {
	return s.bonusAvailableAt(ctx)
}

func (s *RoundSettlement) bonusAvailableAt(ctx context.Context) (time.Time, error) {
	if s.kv == nil {
		return time.Time{}, nil
	}
	raw, err := s.kv.Get(ctx, WheelKeyPrefix+s.casinoID)
	if errors.Is(err, ledger.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load wheel cooldown: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("ignoring unreadable wheel cooldown", "value", raw)
		return time.Time{}, nil
	}
	return time.UnixMilli(ms).Add(s.cooldown), nil
}
