package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
)

// BlackjackView is the table as the player sees it. The dealer's hole card
// stays hidden until the hand is over.
type BlackjackView struct {
	State       State           `json:"state"`
	Bet         decimal.Decimal `json:"bet"`
	Player      []games.Card    `json:"player"`
	PlayerTotal int             `json:"player_total"`
	Dealer      []games.Card    `json:"dealer"`
	DealerTotal int             `json:"dealer_total,omitempty"`
	Result      *Result         `json:"result,omitempty"`
}

// BlackjackOutcome is the rendered end of a hand.
type BlackjackOutcome struct {
	Player      []games.Card `json:"player"`
	Dealer      []games.Card `json:"dealer"`
	PlayerTotal int          `json:"player_total"`
	DealerTotal int          `json:"dealer_total"`
	Result      string       `json:"result"`
}

type blackjackHand struct {
	bet    decimal.Decimal
	before decimal.Decimal
	shoe   *games.Shoe
	player []games.Card
	dealer []games.Card
	proof  fairProof
}

// BlackjackSettlement plays one interactive hand at a time on a fresh
// six-deck shoe. Shoe may be replaced to deal a fixed order.
type BlackjackSettlement struct {
	base
	Shoe func(src engine.Source) *games.Shoe
	hand *blackjackHand
}

func NewBlackjackSettlement(opts Options) *BlackjackSettlement {
	return &BlackjackSettlement{base: newBase(opts, "blackjack_settlement")}
}

// Deal debits the bet and deals player, player, dealer hole, dealer.
// Naturals settle immediately.
func (s *BlackjackSettlement) Deal(ctx context.Context, bet decimal.Decimal) (BlackjackView, error) {
	bet = ledger.Round(bet)
	if !bet.IsPositive() {
		return BlackjackView{}, fmt.Errorf("%w: bet must be greater than zero", ledger.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hand != nil {
		return BlackjackView{}, ErrRoundAlreadyInProgress
	}

	proof, err := s.advance(ctx)
	if err != nil {
		return BlackjackView{}, err
	}
	before := s.wallet.Balance()
	if _, err := s.wallet.Debit(ctx, bet); err != nil {
		return BlackjackView{}, err
	}
	s.transition(games.KindBlackjack, StateIdle, StateActive)

	shoe := s.newShoe()
	h := &blackjackHand{bet: bet, before: before, shoe: shoe, proof: proof}
	h.player = append(h.player, shoe.Draw(), shoe.Draw())
	h.dealer = append(h.dealer, shoe.Draw(), shoe.Draw())
	s.hand = h

	if games.IsNatural(h.player) || games.IsNatural(h.dealer) {
		return s.settle(ctx)
	}
	return s.view(false, nil), nil
}

// Hit draws a card. A bust settles the hand; reaching 21 stands.
func (s *BlackjackSettlement) Hit(ctx context.Context) (BlackjackView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hand == nil {
		return BlackjackView{}, ErrRoundNotActive
	}
	h := s.hand
	h.player = append(h.player, h.shoe.Draw())

	total, _ := games.HandValue(h.player)
	switch {
	case total > 21:
		return s.settle(ctx)
	case total == 21:
		s.playDealer()
		return s.settle(ctx)
	}
	return s.view(false, nil), nil
}

// Stand plays the dealer out and settles.
func (s *BlackjackSettlement) Stand(ctx context.Context) (BlackjackView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hand == nil {
		return BlackjackView{}, ErrRoundNotActive
	}
	s.playDealer()
	return s.settle(ctx)
}

// Hand returns the current hand, or false between hands.
func (s *BlackjackSettlement) Hand() (BlackjackView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hand == nil {
		return BlackjackView{}, false
	}
	return s.view(false, nil), true
}

func (s *BlackjackSettlement) playDealer() {
	h := s.hand
	for games.DealerShouldHit(h.dealer) {
		h.dealer = append(h.dealer, h.shoe.Draw())
	}
}

// settle pays out and clears the hand; the caller holds mu. If the credit
// fails the hand stays open so Stand can be retried.
func (s *BlackjackSettlement) settle(ctx context.Context) (BlackjackView, error) {
	h := s.hand
	factor, label := games.BlackjackFactor(h.player, h.dealer)
	payout := payoutFor(h.bet, factor)

	after := s.wallet.Balance()
	if payout.IsPositive() {
		var err error
		if after, err = s.wallet.Credit(ctx, payout); err != nil {
			return BlackjackView{}, err
		}
	}

	pt, _ := games.HandValue(h.player)
	dt, _ := games.HandValue(h.dealer)
	res := Result{
		Game:          games.KindBlackjack,
		Bet:           h.bet,
		ExtraStake:    decimal.Zero,
		Payout:        payout,
		BalanceBefore: h.before,
		BalanceAfter:  after,
		Win:           factor > games.BlackjackPushFactor,
		Outcome: games.Outcome{
			Game:    games.KindBlackjack,
			Factor:  factor,
			Win:     factor > games.BlackjackPushFactor,
			Summary: fmt.Sprintf("%d against dealer %d, %s", pt, dt, label),
			Details: BlackjackOutcome{
				Player:      h.player,
				Dealer:      h.dealer,
				PlayerTotal: pt,
				DealerTotal: dt,
				Result:      label,
			},
		},
	}
	s.transition(games.KindBlackjack, StateActive, StateResolved)
	s.finish(ctx, &res, h.proof)
	view := s.view(true, &res)
	s.hand = nil
	s.transition(games.KindBlackjack, StateResolved, StateIdle)
	return view, nil
}

func (s *BlackjackSettlement) newShoe() *games.Shoe {
	if s.Shoe != nil {
		return s.Shoe(s.src)
	}
	return games.NewShoe(games.BlackjackDecks, s.src)
}

func (s *BlackjackSettlement) view(done bool, res *Result) BlackjackView {
	h := s.hand
	pt, _ := games.HandValue(h.player)
	v := BlackjackView{
		State:       StateActive,
		Bet:         h.bet,
		Player:      append([]games.Card{}, h.player...),
		PlayerTotal: pt,
		Result:      res,
	}
	if done {
		v.State = StateResolved
		v.Dealer = append([]games.Card{}, h.dealer...)
		v.DealerTotal, _ = games.HandValue(h.dealer)
	} else {
		// hole card is dealt first and stays face down
		v.Dealer = append([]games.Card{}, h.dealer[1:]...)
	}
	return v
}
