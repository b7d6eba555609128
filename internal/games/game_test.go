package games

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

func stakeOf(bet, available float64) Stake {
	return Stake{Bet: decimal.NewFromFloat(bet), Available: decimal.NewFromFloat(available)}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()

	specs := reg.Specs()
	if len(specs) != 7 {
		t.Fatalf("expected 7 single-draw games, got %d", len(specs))
	}
	for i := 1; i < len(specs); i++ {
		if specs[i-1].ID >= specs[i].ID {
			t.Errorf("specs not sorted: %s before %s", specs[i-1].ID, specs[i].ID)
		}
	}

	for _, kind := range []Kind{KindRoulette, KindCoin, KindDice, KindSlots, KindWar, KindRacing, KindWheel} {
		g, ok := reg.Get(kind)
		if !ok {
			t.Errorf("game %s not registered", kind)
			continue
		}
		if g.Spec().ID != kind {
			t.Errorf("game %s reports id %s", kind, g.Spec().ID)
		}
	}

	if _, ok := reg.Get(KindMines); ok {
		t.Error("mines is progressive and must not be in the single-draw registry")
	}

	wheel, _ := reg.Get(KindWheel)
	if !wheel.Spec().Stakeless {
		t.Error("wheel should be stakeless")
	}
}

func TestStakeCanCover(t *testing.T) {
	if !stakeOf(10, 10).CanCover(1) {
		t.Error("exact balance should cover one more bet")
	}
	if stakeOf(10, 9.99).CanCover(1) {
		t.Error("9.99 should not cover a 10 bet")
	}
	if !stakeOf(10, 5).CanCover(0.5) {
		t.Error("5 should cover half a 10 bet")
	}
}

func TestParamInt(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    int
		wantErr bool
	}{
		{"int", 7, 7, false},
		{"int64", int64(7), 7, false},
		{"whole float", 7.0, 7, false},
		{"fractional float", 7.5, 0, true},
		{"string", " 12 ", 12, false},
		{"bad string", "twelve", 0, true},
		{"bool", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, present, err := paramInt(map[string]any{"n": tt.raw}, "n")
			if !present {
				t.Fatal("expected param to be present")
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSelection) {
				t.Errorf("expected ErrInvalidSelection, got %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}

	if _, present, _ := paramInt(nil, "n"); present {
		t.Error("nil params should report absent")
	}
}

func TestCoinGame(t *testing.T) {
	game := &CoinGame{}

	tests := []struct {
		draw     float64
		side     string
		wantSide string
	}{
		{0.0, CoinHeads, CoinHeads},
		{0.4899, CoinHeads, CoinHeads},
		{0.49, CoinTails, CoinTails},
		{0.9799, CoinEdge, CoinTails},
		{0.98, CoinEdge, CoinEdge},
		{0.9999, CoinHeads, CoinEdge},
	}
	for _, tt := range tests {
		out, err := game.Resolve(engine.NewSequence(tt.draw), stakeOf(1, 0), map[string]any{"side": tt.side})
		if err != nil {
			t.Fatalf("draw %v: %v", tt.draw, err)
		}
		got := out.Details.(CoinOutcome).Side
		if got != tt.wantSide {
			t.Errorf("draw %v: side = %s, want %s", tt.draw, got, tt.wantSide)
		}
		wantFactor := 0.0
		if tt.side == tt.wantSide {
			wantFactor = CoinMultipliers[tt.side]
		}
		if out.Factor != wantFactor {
			t.Errorf("draw %v: factor = %v, want %v", tt.draw, out.Factor, wantFactor)
		}
	}

	if err := game.Validate(map[string]any{"side": "rim"}); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for unknown side, got %v", err)
	}
	if err := game.Validate(nil); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for missing side, got %v", err)
	}
}

func TestRouletteGame(t *testing.T) {
	game := &RouletteGame{}
	n := float64(len(RouletteWheelOrder))

	// sector i is hit by draws in [i/37, (i+1)/37)
	drawFor := func(stop int) float64 { return (float64(stop) + 0.5) / n }

	tests := []struct {
		name       string
		stop       int
		params     map[string]any
		wantPocket int
		wantFactor float64
	}{
		{"green on zero", 0, map[string]any{"type": "color", "value": "green"}, 0, 35},
		{"red on 32", 1, map[string]any{"type": "color", "value": "red"}, 32, 2},
		{"black loses on 32", 1, map[string]any{"type": "color", "value": "black"}, 32, 0},
		{"black on 15", 2, map[string]any{"type": "color", "value": "Black"}, 15, 2},
		{"number hit", 36, map[string]any{"type": "number", "value": 26}, 26, 35},
		{"number miss", 36, map[string]any{"type": "number", "value": float64(3)}, 26, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := game.Resolve(engine.NewSequence(drawFor(tt.stop)), stakeOf(1, 0), tt.params)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			d := out.Details.(RouletteOutcome)
			if d.Pocket != tt.wantPocket || d.StopIndex != tt.stop {
				t.Errorf("pocket = %d at %d, want %d at %d", d.Pocket, d.StopIndex, tt.wantPocket, tt.stop)
			}
			if out.Factor != tt.wantFactor {
				t.Errorf("factor = %v, want %v", out.Factor, tt.wantFactor)
			}
		})
	}

	reds := 0
	for p := 0; p <= 36; p++ {
		if PocketColor(p) == ColorRed {
			reds++
		}
	}
	if reds != 18 {
		t.Errorf("expected 18 red pockets, got %d", reds)
	}

	for _, bad := range []map[string]any{
		{"type": "number", "value": 37},
		{"type": "number", "value": -1},
		{"type": "color", "value": "blue"},
		{"type": "split", "value": "1-2"},
		{},
	} {
		if err := game.Validate(bad); !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("params %v: expected ErrInvalidSelection, got %v", bad, err)
		}
	}
}

func TestDiceMultiplier(t *testing.T) {
	tests := []struct {
		mode   DiceMode
		target int
		want   float64
	}{
		{DiceExact, 7, 5.7},
		{DiceExact, 2, 35},
		{DiceLess, 7, 2.24},
		{DiceGreater, 7, 2.24},
		{DiceLess, 3, 34.3},
		{DiceGreater, 11, 34.3},
		{DiceLess, 2, 0},
		{DiceGreater, 12, 0},
	}
	for _, tt := range tests {
		if got := DiceMultiplier(tt.mode, tt.target); got != tt.want {
			t.Errorf("DiceMultiplier(%s, %d) = %v, want %v", tt.mode, tt.target, got, tt.want)
		}
	}

	if got := DiceWinProbability(DiceLess, 7); math.Abs(got-15.0/36) > 1e-12 {
		t.Errorf("P(sum < 7) = %v, want 15/36", got)
	}
}

func TestDiceGame(t *testing.T) {
	game := &DiceGame{}

	out, err := game.Resolve(engine.NewSequence(0, 0), stakeOf(1, 0), map[string]any{"mode": "exact", "target": 2})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	d := out.Details.(DiceOutcome)
	if d.Dice != [2]int{1, 1} || d.Sum != 2 {
		t.Errorf("expected snake eyes, got %v", d.Dice)
	}
	if out.Factor != 35 {
		t.Errorf("factor = %v, want 35", out.Factor)
	}

	out, err = game.Resolve(engine.NewSequence(0.99, 0.5), stakeOf(1, 0), map[string]any{"mode": "less", "target": 7})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d := out.Details.(DiceOutcome); d.Sum != 10 {
		t.Errorf("sum = %d, want 10", d.Sum)
	}
	if out.Win || out.Factor != 0 {
		t.Errorf("10 is not less than 7, got factor %v", out.Factor)
	}

	for _, bad := range []map[string]any{
		{"mode": "exact", "target": 1},
		{"mode": "exact", "target": 13},
		{"mode": "less", "target": 2},
		{"mode": "greater", "target": 12},
		{"mode": "between", "target": 7},
		{"mode": "exact"},
	} {
		if err := game.Validate(bad); !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("params %v: expected ErrInvalidSelection, got %v", bad, err)
		}
	}
}

func TestSlotsBestLine(t *testing.T) {
	c, l, s, x, b := SymbolCherry, SymbolLemon, SymbolSeven, SymbolStar, SymbolBell

	tests := []struct {
		name      string
		grid      SlotsGrid
		wantBest  float64
		wantLines int
	}{
		{"no line", SlotsGrid{{c, l, s}, {l, s, c}, {c, c, l}}, 0, 0},
		{"middle row", SlotsGrid{{c, s, l}, {l, s, c}, {c, s, l}}, 300, 1},
		{"down diagonal", SlotsGrid{{x, c, l}, {l, x, c}, {c, l, x}}, 2500, 1},
		{"up diagonal", SlotsGrid{{c, l, s}, {c, s, l}, {s, c, l}}, 300, 1},
		{"top row", SlotsGrid{{c, l, s}, {c, s, l}, {c, l, s}}, 4, 1},
		// cherries on top, sevens in the middle: only the best line pays
		{"two rows", SlotsGrid{{c, s, l}, {c, s, b}, {c, s, l}}, 300, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, lines := BestLine(tt.grid)
			if best != tt.wantBest {
				t.Errorf("best = %v, want %v", best, tt.wantBest)
			}
			if len(lines) != tt.wantLines {
				t.Errorf("lines = %v, want %d", lines, tt.wantLines)
			}
		})
	}

	// both diagonals of sevens pay once, not twice
	grid := SlotsGrid{{s, l, s}, {l, s, l}, {s, l, s}}
	best, lines := BestLine(grid)
	if best != 300 {
		t.Errorf("best = %v, want 300", best)
	}
	if len(lines) != 2 {
		t.Errorf("expected both diagonals, got %v", lines)
	}
}

func TestSlotsGame(t *testing.T) {
	game := &SlotsGame{}

	out, err := game.Resolve(engine.NewSequence(0.99), stakeOf(1, 0), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Factor != 2500 {
		t.Errorf("all-star grid should pay 2500, got %v", out.Factor)
	}
	if n := len(out.Details.(SlotsOutcome).Lines); n != 5 {
		t.Errorf("all-star grid has 5 lines, got %d", n)
	}

	out, err = game.Resolve(engine.NewSequence(0), stakeOf(1, 0), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Factor != 4 {
		t.Errorf("all-cherry grid should pay 4, got %v", out.Factor)
	}

	if p := SlotsSymbolProbability(SymbolStar); math.Abs(p-1.0/29) > 1e-12 {
		t.Errorf("star probability = %v, want 1/29", p)
	}
}

func TestWheelGame(t *testing.T) {
	game := &WheelGame{}

	tests := []struct {
		draw float64
		want float64
	}{
		{0, 100},
		{0.2999, 100},
		{0.30, 200},
		{0.5, 200},
		{0.7, 300},
		{0.8, 500},
		{0.9, 1000},
		{0.97, 2000},
		{0.9999, 2000},
	}
	for _, tt := range tests {
		out, err := game.Resolve(engine.NewSequence(tt.draw), Stake{}, nil)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if out.Award != tt.want {
			t.Errorf("draw %v: award = %v, want %v", tt.draw, out.Award, tt.want)
		}
		if out.Factor != 0 {
			t.Errorf("wheel must not use a stake factor, got %v", out.Factor)
		}
	}

	// 30 + 50 + 60 + 65 + 70 + 100
	if ev := WheelExpectedPrize(); math.Abs(ev-375) > 1e-9 {
		t.Errorf("expected prize = %v, want 375", ev)
	}
}
