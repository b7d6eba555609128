package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
)

const (
	PokerMinOpponents = 1
	PokerMaxOpponents = 3

	pokerCommunityCards = 5
)

// Street names the community cards dealt so far.
type Street string

const (
	StreetPreflop Street = "preflop"
	StreetFlop    Street = "flop"
	StreetTurn    Street = "turn"
	StreetRiver   Street = "river"
)

// ErrStreetsComplete is returned when all community cards are already out.
var ErrStreetsComplete = fmt.Errorf("%w: all community cards have been dealt", games.ErrInvalidSelection)

// PokerSeat is one participant at showdown. Seat 0 is the player.
type PokerSeat struct {
	Seat     int                `json:"seat"`
	Pocket   []games.Card       `json:"pocket"`
	Best     []games.Card       `json:"best,omitempty"`
	Strength games.HandStrength `json:"strength"`
	Winner   bool               `json:"winner"`
	Share    decimal.Decimal    `json:"share"`
}

// PokerView is the table before showdown. Opponent pockets stay hidden.
type PokerView struct {
	State     State           `json:"state"`
	Street    Street          `json:"street"`
	Opponents int             `json:"opponents"`
	Ante      decimal.Decimal `json:"ante"`
	Pot       decimal.Decimal `json:"pot"`
	Pocket    []games.Card    `json:"pocket"`
	Community []games.Card    `json:"community"`
}

// PokerShowdown is the rendered end of a hand.
type PokerShowdown struct {
	Community []games.Card    `json:"community"`
	Seats     []PokerSeat     `json:"seats"`
	Pot       decimal.Decimal `json:"pot"`
	Rake      decimal.Decimal `json:"rake"`
	Split     bool            `json:"split"`
}

type pokerHand struct {
	ante      decimal.Decimal
	pot       decimal.Decimal
	before    decimal.Decimal
	shoe      *games.Shoe
	pockets   [][]games.Card
	community []games.Card
	proof     fairProof
}

// PokerSettlement runs the ante-only showdown variant: every seat antes
// once, the board runs out, best hand takes the pot less rake.
type PokerSettlement struct {
	base
	Shoe func(src engine.Source) *games.Shoe
	hand *pokerHand
}

func NewPokerSettlement(opts Options) *PokerSettlement {
	return &PokerSettlement{base: newBase(opts, "poker_settlement")}
}

// Deal debits the player's ante, builds the pot from every seat's ante and
// deals two pocket cards per seat.
func (s *PokerSettlement) Deal(ctx context.Context, opponents int, ante decimal.Decimal) (PokerView, error) {
	if opponents < PokerMinOpponents || opponents > PokerMaxOpponents {
		return PokerView{}, fmt.Errorf("%w: opponents must be between %d and %d, got %d",
			games.ErrInvalidSelection, PokerMinOpponents, PokerMaxOpponents, opponents)
	}
	ante = ledger.Round(ante)
	if !ante.IsPositive() {
		return PokerView{}, fmt.Errorf("%w: ante must be greater than zero", ledger.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hand != nil {
		return PokerView{}, ErrRoundAlreadyInProgress
	}

	proof, err := s.advance(ctx)
	if err != nil {
		return PokerView{}, err
	}
	before := s.wallet.Balance()
	if _, err := s.wallet.Debit(ctx, ante); err != nil {
		return PokerView{}, err
	}
	s.transition(games.KindPoker, StateIdle, StateActive)

	shoe := s.newShoe()
	h := &pokerHand{
		ante:    ante,
		pot:     ante.Mul(decimal.NewFromInt(int64(opponents + 1))),
		before:  before,
		shoe:    shoe,
		pockets: make([][]games.Card, opponents+1),
		proof:   proof,
	}
	for round := 0; round < 2; round++ {
		for seat := range h.pockets {
			h.pockets[seat] = append(h.pockets[seat], shoe.Draw())
		}
	}
	s.hand = h
	return s.view(), nil
}

// AdvanceStreet deals the flop, then the turn, then the river.
func (s *PokerSettlement) AdvanceStreet(ctx context.Context) (PokerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hand == nil {
		return PokerView{}, ErrRoundNotActive
	}
	if len(s.hand.community) >= pokerCommunityCards {
		return PokerView{}, ErrStreetsComplete
	}
	s.dealStreet()
	return s.view(), nil
}

// Showdown runs out any remaining streets and pays the winners. A single
// winner takes round2(pot x 0.98). Tied winners split the raw pot; each
// share is truncated to the cent and the remainder stays with the house.
func (s *PokerSettlement) Showdown(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hand == nil {
		return Result{}, ErrRoundNotActive
	}
	h := s.hand
	for len(h.community) < pokerCommunityCards {
		s.dealStreet()
	}

	seats := make([]PokerSeat, len(h.pockets))
	var best games.HandStrength
	for i, pocket := range h.pockets {
		cards, strength := games.BestOf(pocket, h.community)
		seats[i] = PokerSeat{Seat: i, Pocket: pocket, Best: cards, Strength: strength, Share: decimal.Zero}
		if i == 0 || games.Compare(strength, best) > 0 {
			best = strength
		}
	}
	var winners []int
	for i := range seats {
		if games.Compare(seats[i].Strength, best) == 0 {
			seats[i].Winner = true
			winners = append(winners, i)
		}
	}

	show := PokerShowdown{Community: h.community, Pot: h.pot, Split: len(winners) > 1}
	if len(winners) == 1 {
		seats[winners[0]].Share = ledger.Round(h.pot.Mul(decimal.NewFromFloat(games.HouseEdge)))
	} else {
		share := h.pot.Div(decimal.NewFromInt(int64(len(winners)))).Truncate(2)
		for _, w := range winners {
			seats[w].Share = share
		}
	}
	paid := decimal.Zero
	for _, seat := range seats {
		paid = paid.Add(seat.Share)
	}
	show.Rake = h.pot.Sub(paid)
	show.Seats = seats

	payout := seats[0].Share
	after := s.wallet.Balance()
	if payout.IsPositive() {
		var err error
		if after, err = s.wallet.Credit(ctx, payout); err != nil {
			return Result{}, err
		}
	}

	var summary string
	switch {
	case show.Split && seats[0].Winner:
		summary = fmt.Sprintf("split pot %d ways with %s", len(winners), best.Name)
	case show.Split:
		summary = fmt.Sprintf("opponents split the pot with %s", best.Name)
	case seats[0].Winner:
		summary = fmt.Sprintf("your %s takes the pot", best.Name)
	default:
		summary = fmt.Sprintf("seat %d wins with %s", winners[0], best.Name)
	}

	res := Result{
		Game:          games.KindPoker,
		Bet:           h.ante,
		ExtraStake:    decimal.Zero,
		Payout:        payout,
		BalanceBefore: h.before,
		BalanceAfter:  after,
		Win:           payout.GreaterThan(h.ante),
		Outcome: games.Outcome{
			Game:    games.KindPoker,
			Factor:  payout.Div(h.ante).InexactFloat64(),
			Win:     seats[0].Winner,
			Summary: summary,
			Details: show,
		},
	}
	s.transition(games.KindPoker, StateActive, StateResolved)
	s.finish(ctx, &res, h.proof)
	s.hand = nil
	s.transition(games.KindPoker, StateResolved, StateIdle)
	return res, nil
}

// Hand returns the current table, or false between hands.
func (s *PokerSettlement) Hand() (PokerView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hand == nil {
		return PokerView{}, false
	}
	return s.view(), true
}

func (s *PokerSettlement) dealStreet() {
	h := s.hand
	n := 1
	if len(h.community) == 0 {
		n = 3
	}
	for i := 0; i < n; i++ {
		h.community = append(h.community, h.shoe.Draw())
	}
}

func (s *PokerSettlement) newShoe() *games.Shoe {
	if s.Shoe != nil {
		return s.Shoe(s.src)
	}
	return games.NewShoe(1, s.src)
}

func (s *PokerSettlement) view() PokerView {
	h := s.hand
	street := StreetPreflop
	switch len(h.community) {
	case 3:
		street = StreetFlop
	case 4:
		street = StreetTurn
	case 5:
		street = StreetRiver
	}
	return PokerView{
		State:     StateActive,
		Street:    street,
		Opponents: len(h.pockets) - 1,
		Ante:      h.ante,
		Pot:       h.pot,
		Pocket:    append([]games.Card{}, h.pockets[0]...),
		Community: append([]games.Card{}, h.community...),
	}
}
