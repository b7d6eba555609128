package games

import (
	"fmt"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// DiceGame rolls two six-sided dice and pays on the sum.
type DiceGame struct{}

type DiceMode string

const (
	DiceExact   DiceMode = "exact"
	DiceLess    DiceMode = "less"
	DiceGreater DiceMode = "greater"

	diceMinSum = 2
	diceMaxSum = 12
)

// DiceOdds pays an exact sum; values track 36/ways with an edge folded in.
var DiceOdds = map[int]float64{
	2: 35, 3: 17.3, 4: 11.5, 5: 8.5, 6: 6.8, 7: 5.7,
	8: 6.8, 9: 8.5, 10: 11.5, 11: 17.3, 12: 35,
}

// DiceOutcome is the rendered roll.
type DiceOutcome struct {
	Dice       [2]int   `json:"dice"`
	Sum        int      `json:"sum"`
	Mode       DiceMode `json:"mode"`
	Target     int      `json:"target"`
	Multiplier float64  `json:"multiplier"`
}

func (g *DiceGame) Spec() GameSpec {
	return GameSpec{ID: KindDice, Name: "Dice", Selection: "mode=exact|less|greater, target=2..12"}
}

func (g *DiceGame) Validate(params map[string]any) error {
	_, _, err := diceParams(params)
	return err
}

func (g *DiceGame) Resolve(src engine.Source, _ Stake, params map[string]any) (Outcome, error) {
	mode, target, err := diceParams(params)
	if err != nil {
		return Outcome{}, err
	}

	d1 := engine.UniformIndex(src.Draw(), 6) + 1
	d2 := engine.UniformIndex(src.Draw(), 6) + 1
	sum := d1 + d2

	mult := DiceMultiplier(mode, target)
	var win bool
	switch mode {
	case DiceExact:
		win = sum == target
	case DiceLess:
		win = sum < target
	case DiceGreater:
		win = sum > target
	}

	out := Outcome{
		Game:    KindDice,
		Summary: fmt.Sprintf("rolled %d + %d = %d", d1, d2, sum),
		Details: DiceOutcome{Dice: [2]int{d1, d2}, Sum: sum, Mode: mode, Target: target, Multiplier: mult},
	}
	if win && mult > 0 {
		out.Win = true
		out.Factor = mult
	}
	return out, nil
}

// DiceMultiplier returns the payout multiplier for a mode and target.
// Exact bets read the odds table. Less/greater bets combine the odds of
// every favorable sum: (36 / Σ 36/odds[s]) × 0.98, rounded to 2 dp, and
// return 0 when no sum is favorable.
func DiceMultiplier(mode DiceMode, target int) float64 {
	if mode == DiceExact {
		return DiceOdds[target]
	}

	sumInv := 0.0
	for _, s := range favorableSums(mode, target) {
		sumInv += 36 / DiceOdds[s]
	}
	if sumInv == 0 {
		return 0
	}
	return round2((36 / sumInv) * HouseEdge)
}

func favorableSums(mode DiceMode, target int) []int {
	var sums []int
	for s := diceMinSum; s <= diceMaxSum; s++ {
		switch {
		case mode == DiceLess && s < target:
			sums = append(sums, s)
		case mode == DiceGreater && s > target:
			sums = append(sums, s)
		}
	}
	return sums
}

// DiceWinProbability is the true chance of the bet winning out of 36 rolls.
func DiceWinProbability(mode DiceMode, target int) float64 {
	ways := 0
	for a := 1; a <= 6; a++ {
		for b := 1; b <= 6; b++ {
			s := a + b
			if (mode == DiceExact && s == target) ||
				(mode == DiceLess && s < target) ||
				(mode == DiceGreater && s > target) {
				ways++
			}
		}
	}
	return float64(ways) / 36
}

func diceParams(params map[string]any) (DiceMode, int, error) {
	rawMode, ok := paramString(params, "mode")
	if !ok {
		rawMode = string(DiceExact)
	}
	mode := DiceMode(rawMode)
	switch mode {
	case DiceExact, DiceLess, DiceGreater:
	default:
		return "", 0, invalidSelection("unknown dice mode %q", rawMode)
	}

	target, present, err := paramInt(params, "target")
	if err != nil {
		return "", 0, err
	}
	if !present {
		return "", 0, invalidSelection("dice requires a target sum")
	}
	if target < diceMinSum || target > diceMaxSum {
		return "", 0, invalidSelection("dice target must be between %d and %d, got %d", diceMinSum, diceMaxSum, target)
	}
	if mode == DiceLess && target <= diceMinSum {
		return "", 0, invalidSelection("nothing rolls less than %d", target)
	}
	if mode == DiceGreater && target >= diceMaxSum {
		return "", 0, invalidSelection("nothing rolls greater than %d", target)
	}
	return mode, target, nil
}
