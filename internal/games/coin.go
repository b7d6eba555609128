package games

import (
	"fmt"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// CoinGame flips a coin that can land on its edge.
type CoinGame struct{}

const (
	CoinHeads = "heads"
	CoinTails = "tails"
	CoinEdge  = "edge"
)

var coinTable = engine.MustWeightedTable([]engine.Weighted[string]{
	{Value: CoinHeads, Probability: 0.49},
	{Value: CoinTails, Probability: 0.49},
	{Value: CoinEdge, Probability: 0.02},
})

// CoinMultipliers is deliberately asymmetric: the edge carries the house margin.
var CoinMultipliers = map[string]float64{
	CoinHeads: 2,
	CoinTails: 2,
	CoinEdge:  48,
}

// CoinOutcome is the rendered coin state.
type CoinOutcome struct {
	Side   string `json:"side"`
	Picked string `json:"picked"`
}

func (g *CoinGame) Spec() GameSpec {
	return GameSpec{ID: KindCoin, Name: "Coin Flip", Selection: "side=heads|tails|edge"}
}

func (g *CoinGame) Validate(params map[string]any) error {
	_, err := coinSide(params)
	return err
}

func (g *CoinGame) Resolve(src engine.Source, _ Stake, params map[string]any) (Outcome, error) {
	picked, err := coinSide(params)
	if err != nil {
		return Outcome{}, err
	}

	side := coinTable.Pick(src)
	out := Outcome{
		Game:    KindCoin,
		Summary: fmt.Sprintf("coin landed on %s", side),
		Details: CoinOutcome{Side: side, Picked: picked},
	}
	if side == picked {
		out.Win = true
		out.Factor = CoinMultipliers[side]
	}
	return out, nil
}

// CoinProbability is the chance of the coin landing on side.
func CoinProbability(side string) float64 {
	for i := 0; i < coinTable.Len(); i++ {
		if coinTable.Value(i) == side {
			return coinTable.Probability(i)
		}
	}
	return 0
}

func coinSide(params map[string]any) (string, error) {
	side, ok := paramString(params, "side")
	if !ok {
		return "", invalidSelection("coin requires a side")
	}
	if _, known := CoinMultipliers[side]; !known {
		return "", invalidSelection("unknown coin side %q", side)
	}
	return side, nil
}
