package games

import (
	"fmt"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// WarGame is Casino War against a fresh six-deck shoe each round.
// Shoe may be replaced to deal a fixed card order.
type WarGame struct {
	Shoe func(src engine.Source) *Shoe
}

const (
	WarDecks      = 6
	warBurnCards  = 3
	WarTieWar     = "war"
	WarTieSurrend = "surrender"

	warWinFactor       = 2
	warSurrenderFactor = 0.5
	// Going to war doubles the stake; a war win pays both stakes at 1:1
	// and a second tie returns both.
	warWarWinFactor  = 4
	warWarPushFactor = 2
)

// War round results.
const (
	WarResultWin       = "win"
	WarResultLoss      = "loss"
	WarResultSurrender = "surrender"
	WarResultWarWin    = "war_win"
	WarResultWarLoss   = "war_loss"
	WarResultWarPush   = "war_push"
)

// WarOutcome is the rendered deal.
type WarOutcome struct {
	Player     Card   `json:"player"`
	Dealer     Card   `json:"dealer"`
	TiePolicy  string `json:"tie_policy"`
	Burned     []Card `json:"burned,omitempty"`
	WarPlayer  *Card  `json:"war_player,omitempty"`
	WarDealer  *Card  `json:"war_dealer,omitempty"`
	Result     string `json:"result"`
	ForcedFold bool   `json:"forced_fold,omitempty"`
}

func (g *WarGame) Spec() GameSpec {
	return GameSpec{ID: KindWar, Name: "Casino War", Selection: "tie=war|surrender"}
}

func (g *WarGame) Validate(params map[string]any) error {
	_, err := warTiePolicy(params)
	return err
}

func (g *WarGame) Resolve(src engine.Source, stake Stake, params map[string]any) (Outcome, error) {
	policy, err := warTiePolicy(params)
	if err != nil {
		return Outcome{}, err
	}

	shoe := g.newShoe(src)
	player, dealer := shoe.Draw(), shoe.Draw()
	details := WarOutcome{Player: player, Dealer: dealer, TiePolicy: policy}
	out := Outcome{Game: KindWar}

	switch {
	case player.Value() > dealer.Value():
		details.Result = WarResultWin
		out.Win = true
		out.Factor = warWinFactor
	case player.Value() < dealer.Value():
		details.Result = WarResultLoss
	default:
		if policy == WarTieWar && !stake.CanCover(1) {
			policy = WarTieSurrend
			details.ForcedFold = true
		}
		if policy == WarTieSurrend {
			details.Result = WarResultSurrender
			out.Factor = warSurrenderFactor
			break
		}

		out.ExtraStake = 1
		details.Burned = shoe.Burn(warBurnCards)
		wp, wd := shoe.Draw(), shoe.Draw()
		details.WarPlayer, details.WarDealer = &wp, &wd
		switch {
		case wp.Value() > wd.Value():
			details.Result = WarResultWarWin
			out.Win = true
			out.Factor = warWarWinFactor
		case wp.Value() == wd.Value():
			details.Result = WarResultWarPush
			out.Factor = warWarPushFactor
		default:
			details.Result = WarResultWarLoss
		}
	}

	out.Summary = fmt.Sprintf("player %s vs dealer %s: %s", player, dealer, details.Result)
	out.Details = details
	return out, nil
}

func (g *WarGame) newShoe(src engine.Source) *Shoe {
	if g.Shoe != nil {
		return g.Shoe(src)
	}
	return NewShoe(WarDecks, src)
}

func warTiePolicy(params map[string]any) (string, error) {
	policy, ok := paramString(params, "tie")
	if !ok {
		return WarTieWar, nil
	}
	switch policy {
	case WarTieWar, WarTieSurrend:
		return policy, nil
	}
	return "", invalidSelection("unknown tie policy %q", policy)
}
