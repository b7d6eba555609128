package games

import (
	"fmt"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// SlotsGame spins a 3x3 grid and pays the best single line.
type SlotsGame struct{}

const (
	SymbolCherry     = "cherry"
	SymbolLemon      = "lemon"
	SymbolBell       = "bell"
	SymbolWatermelon = "watermelon"
	SymbolSeven      = "seven"
	SymbolStar       = "star"

	slotsSize = 3
)

// Reel strip counts; a symbol's chance per cell is its count over 29.
var slotsReelWeights = []struct {
	symbol string
	weight int
}{
	{SymbolCherry, 10},
	{SymbolLemon, 7},
	{SymbolBell, 5},
	{SymbolWatermelon, 4},
	{SymbolSeven, 2},
	{SymbolStar, 1},
}

// SlotsMultipliers pays three of a kind on a line.
var SlotsMultipliers = map[string]float64{
	SymbolCherry:     4,
	SymbolLemon:      9,
	SymbolBell:       20,
	SymbolWatermelon: 50,
	SymbolSeven:      300,
	SymbolStar:       2500,
}

var slotsReel = func() *engine.WeightedTable[string] {
	total := 0
	for _, w := range slotsReelWeights {
		total += w.weight
	}
	entries := make([]engine.Weighted[string], len(slotsReelWeights))
	for i, w := range slotsReelWeights {
		entries[i] = engine.Weighted[string]{Value: w.symbol, Probability: float64(w.weight) / float64(total)}
	}
	return engine.MustWeightedTable(entries)
}()

// SlotsGrid is indexed [column][row], matching how reels are drawn.
type SlotsGrid [slotsSize][slotsSize]string

// SlotsLine is a winning line.
type SlotsLine struct {
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Multiplier float64 `json:"multiplier"`
}

// SlotsOutcome is the rendered spin.
type SlotsOutcome struct {
	Grid       SlotsGrid   `json:"grid"`
	Lines      []SlotsLine `json:"lines,omitempty"`
	Multiplier float64     `json:"multiplier"`
}

func (g *SlotsGame) Spec() GameSpec {
	return GameSpec{ID: KindSlots, Name: "Slots", Selection: "none"}
}

func (g *SlotsGame) Validate(map[string]any) error { return nil }

func (g *SlotsGame) Resolve(src engine.Source, _ Stake, _ map[string]any) (Outcome, error) {
	var grid SlotsGrid
	for col := 0; col < slotsSize; col++ {
		for row := 0; row < slotsSize; row++ {
			grid[col][row] = slotsReel.Pick(src)
		}
	}

	best, lines := BestLine(grid)
	out := Outcome{
		Game:    KindSlots,
		Summary: "no winning line",
		Details: SlotsOutcome{Grid: grid, Lines: lines, Multiplier: best},
	}
	if best > 0 {
		out.Win = true
		out.Factor = best
		out.Summary = fmt.Sprintf("%d winning line(s), best pays x%g", len(lines), best)
	}
	return out, nil
}

// BestLine checks the three rows and both diagonals and returns the
// highest single line multiplier. Simultaneous lines never add up.
func BestLine(grid SlotsGrid) (float64, []SlotsLine) {
	var lines []SlotsLine
	check := func(name string, cells [slotsSize]string) {
		for i := 1; i < slotsSize; i++ {
			if cells[i] != cells[0] {
				return
			}
		}
		lines = append(lines, SlotsLine{Name: name, Symbol: cells[0], Multiplier: SlotsMultipliers[cells[0]]})
	}

	for row := 0; row < slotsSize; row++ {
		var cells [slotsSize]string
		for col := 0; col < slotsSize; col++ {
			cells[col] = grid[col][row]
		}
		check(fmt.Sprintf("row %d", row+1), cells)
	}

	var down, up [slotsSize]string
	for i := 0; i < slotsSize; i++ {
		down[i] = grid[i][i]
		up[i] = grid[i][slotsSize-1-i]
	}
	check("diagonal down", down)
	check("diagonal up", up)

	best := 0.0
	for _, l := range lines {
		if l.Multiplier > best {
			best = l.Multiplier
		}
	}
	return best, lines
}

// SlotsSymbolProbability is the per-cell chance of a symbol.
func SlotsSymbolProbability(symbol string) float64 {
	for i := 0; i < slotsReel.Len(); i++ {
		if slotsReel.Value(i) == symbol {
			return slotsReel.Probability(i)
		}
	}
	return 0
}
