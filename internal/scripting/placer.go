package scripting

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
	"github.com/MJE43/casino-settle-go/internal/settlement"
)

// SettlementPlacer places script bets through the same settlement objects
// the HTTP adapter uses, so every scripted round obeys the same balance
// rules as a manual one.
type SettlementPlacer struct {
	Rounds    *settlement.RoundSettlement
	Mines     *settlement.MinesSettlement
	Blackjack *settlement.BlackjackSettlement
	Wallet    settlement.Wallet
}

var _ MultiRoundPlacer = (*SettlementPlacer)(nil)

// PlaceBet starts a round for vars.Game with vars.NextBet.
func (p *SettlementPlacer) PlaceBet(ctx context.Context, vars *Variables) (*BetResult, error) {
	amount := ledger.Round(decimal.NewFromFloat(vars.NextBet))

	switch vars.Game {
	case string(games.KindMines):
		if p.Mines == nil {
			return nil, fmt.Errorf("mines is not available to scripts")
		}
		view, err := p.Mines.Start(ctx, vars.Rows, vars.Cols, vars.Mines, amount)
		if err != nil {
			return nil, err
		}
		return p.activeResult(vars.Game, view.RoundID, view.Bet, view.Multiplier), nil

	case string(games.KindBlackjack):
		if p.Blackjack == nil {
			return nil, fmt.Errorf("blackjack is not available to scripts")
		}
		view, err := p.Blackjack.Deal(ctx, amount)
		if err != nil {
			return nil, err
		}
		if view.Result != nil {
			return betResultFrom(*view.Result), nil
		}
		return p.activeResult(vars.Game, "", view.Bet, 0), nil

	case string(games.KindPoker), string(games.KindWheel):
		return nil, fmt.Errorf("%w: %s cannot be scripted", games.ErrInvalidSelection, vars.Game)
	}

	res, err := p.Rounds.PlaceBet(ctx, games.Kind(vars.Game), amount, vars.Params())
	if err != nil {
		return nil, err
	}
	return betResultFrom(res), nil
}

// PlaceNextAction reveals a mines cell or hits/stands in blackjack.
func (p *SettlementPlacer) PlaceNextAction(ctx context.Context, game string, action interface{}) (*BetResult, bool, error) {
	switch game {
	case string(games.KindMines):
		cell, ok := intAction(action)
		if !ok {
			return nil, false, fmt.Errorf("mines action must be a cell index, got %v", action)
		}
		board, active := p.Mines.Board()
		if !active {
			return nil, false, settlement.ErrRoundNotActive
		}
		if cell < 0 || cell >= board.Rows*board.Cols {
			return nil, false, fmt.Errorf("%w: cell %d is off the board", games.ErrInvalidSelection, cell)
		}
		rr, err := p.Mines.Reveal(ctx, cell/board.Cols, cell%board.Cols)
		if err != nil {
			return nil, false, err
		}
		if rr.Result != nil {
			return betResultFrom(*rr.Result), false, nil
		}
		return p.activeResult(game, rr.Board.RoundID, rr.Board.Bet, rr.Board.Multiplier), true, nil

	case string(games.KindBlackjack):
		var view settlement.BlackjackView
		var err error
		switch strings.ToLower(fmt.Sprint(action)) {
		case BlackjackHit:
			view, err = p.Blackjack.Hit(ctx)
		case BlackjackStand:
			view, err = p.Blackjack.Stand(ctx)
		default:
			return nil, false, fmt.Errorf("unknown blackjack action %v", action)
		}
		if err != nil {
			return nil, false, err
		}
		if view.Result != nil {
			return betResultFrom(*view.Result), false, nil
		}
		return p.activeResult(game, "", view.Bet, 0), true, nil
	}
	return nil, false, fmt.Errorf("%s has no round actions", game)
}

// Cashout ends the active round: mines cashes out (or forfeits with no
// reveals), blackjack stands.
func (p *SettlementPlacer) Cashout(ctx context.Context, game string) (*BetResult, error) {
	switch game {
	case string(games.KindMines):
		res, err := p.Mines.Hide(ctx)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, settlement.ErrRoundNotActive
		}
		return betResultFrom(*res), nil
	case string(games.KindBlackjack):
		view, err := p.Blackjack.Stand(ctx)
		if err != nil {
			return nil, err
		}
		if view.Result == nil {
			return nil, fmt.Errorf("blackjack hand did not settle on stand")
		}
		return betResultFrom(*view.Result), nil
	}
	return nil, fmt.Errorf("%s has no round actions", game)
}

func (p *SettlementPlacer) activeResult(game, roundID string, bet decimal.Decimal, multiplier float64) *BetResult {
	return &BetResult{
		RoundID:     roundID,
		Game:        game,
		Amount:      bet.InexactFloat64(),
		PayoutMulti: multiplier,
		Balance:     p.Wallet.Balance().InexactFloat64(),
		Active:      true,
	}
}

func betResultFrom(res settlement.Result) *BetResult {
	out := &BetResult{
		RoundID:     res.RoundID,
		Game:        string(res.Game),
		Amount:      res.Bet.Add(res.ExtraStake).InexactFloat64(),
		Payout:      res.Payout.InexactFloat64(),
		PayoutMulti: res.Outcome.Factor,
		Win:         res.Win,
		Summary:     res.Outcome.Summary,
		Balance:     res.BalanceAfter.InexactFloat64(),
	}
	if dice, ok := res.Outcome.Details.(games.DiceOutcome); ok {
		out.Roll = float64(dice.Sum)
	}
	return out
}

func intAction(action interface{}) (int, bool) {
	switch v := action.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), v == float64(int(v))
	}
	return 0, false
}
