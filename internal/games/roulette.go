package games

import (
	"fmt"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// RouletteGame implements European Roulette (0-36)
type RouletteGame struct{}

const (
	ColorRed   = "red"
	ColorBlack = "black"
	ColorGreen = "green"

	rouletteColorMultiplier  = 2
	rouletteGreenMultiplier  = 35
	rouletteNumberMultiplier = 35
)

// RouletteWheelOrder lists pockets clockwise from zero.
var RouletteWheelOrder = []int{
	0, 32, 15, 19, 4, 21, 2, 25, 17, 34, 6, 27, 13, 36, 11, 30, 8, 23, 10,
	5, 24, 16, 33, 1, 20, 14, 31, 9, 22, 18, 29, 7, 28, 12, 35, 3, 26,
}

var rouletteRed = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true,
	12: true, 14: true, 16: true, 18: true, 19: true,
	21: true, 23: true, 25: true, 27: true, 30: true,
	32: true, 34: true, 36: true,
}

// Every sector of the wheel is equally likely.
var rouletteTable = func() *engine.WeightedTable[int] {
	entries := make([]engine.Weighted[int], len(RouletteWheelOrder))
	for i, pocket := range RouletteWheelOrder {
		entries[i] = engine.Weighted[int]{Value: pocket, Probability: 1.0 / float64(len(RouletteWheelOrder))}
	}
	return engine.MustWeightedTable(entries)
}()

// RouletteOutcome is the rendered spin; StopIndex is the sector under the pointer.
type RouletteOutcome struct {
	Pocket    int    `json:"pocket"`
	Color     string `json:"color"`
	StopIndex int    `json:"stop_index"`
	BetType   string `json:"bet_type"`
	BetValue  string `json:"bet_value"`
}

type rouletteBet struct {
	kind   string // "color" or "number"
	color  string
	number int
}

// PocketColor returns red, black or green.
func PocketColor(pocket int) string {
	switch {
	case pocket == 0:
		return ColorGreen
	case rouletteRed[pocket]:
		return ColorRed
	default:
		return ColorBlack
	}
}

func (g *RouletteGame) Spec() GameSpec {
	return GameSpec{ID: KindRoulette, Name: "Roulette", Selection: "type=color, value=red|black|green | type=number, value=0..36"}
}

func (g *RouletteGame) Validate(params map[string]any) error {
	_, err := rouletteParams(params)
	return err
}

func (g *RouletteGame) Resolve(src engine.Source, _ Stake, params map[string]any) (Outcome, error) {
	bet, err := rouletteParams(params)
	if err != nil {
		return Outcome{}, err
	}

	stop := rouletteTable.PickIndex(src)
	pocket := rouletteTable.Value(stop)
	color := PocketColor(pocket)

	details := RouletteOutcome{Pocket: pocket, Color: color, StopIndex: stop, BetType: bet.kind}
	out := Outcome{Game: KindRoulette, Summary: fmt.Sprintf("ball landed on %d %s", pocket, color)}

	switch bet.kind {
	case "color":
		details.BetValue = bet.color
		if color == bet.color {
			out.Win = true
			out.Factor = rouletteColorMultiplier
			if color == ColorGreen {
				out.Factor = rouletteGreenMultiplier
			}
		}
	case "number":
		details.BetValue = fmt.Sprint(bet.number)
		if pocket == bet.number {
			out.Win = true
			out.Factor = rouletteNumberMultiplier
		}
	}
	out.Details = details
	return out, nil
}

func rouletteParams(params map[string]any) (rouletteBet, error) {
	kind, ok := paramString(params, "type")
	if !ok {
		return rouletteBet{}, invalidSelection("roulette requires a bet type")
	}

	switch kind {
	case "color":
		color, ok := paramString(params, "value")
		if !ok {
			return rouletteBet{}, invalidSelection("color bet requires a color")
		}
		switch color {
		case ColorRed, ColorBlack, ColorGreen:
			return rouletteBet{kind: kind, color: color}, nil
		}
		return rouletteBet{}, invalidSelection("unknown roulette color %q", color)
	case "number":
		n, present, err := paramInt(params, "value")
		if err != nil {
			return rouletteBet{}, err
		}
		if !present {
			return rouletteBet{}, invalidSelection("number bet requires a number")
		}
		if n < 0 || n > 36 {
			return rouletteBet{}, invalidSelection("roulette number must be between 0 and 36, got %d", n)
		}
		return rouletteBet{kind: kind, number: n}, nil
	default:
		return rouletteBet{}, invalidSelection("unknown roulette bet type %q", kind)
	}
}
