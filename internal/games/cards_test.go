package games

import (
	"math"
	"testing"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

func mustCards(t *testing.T, specs ...string) []Card {
	t.Helper()
	cards := make([]Card, len(specs))
	for i, s := range specs {
		c, err := ParseCard(s)
		if err != nil {
			t.Fatalf("ParseCard(%q): %v", s, err)
		}
		cards[i] = c
	}
	return cards
}

func TestParseCard(t *testing.T) {
	for _, s := range []string{"♠A", "♥10", "♦2", "♣K"} {
		c, err := ParseCard(s)
		if err != nil {
			t.Fatalf("ParseCard(%q): %v", s, err)
		}
		if c.String() != s {
			t.Errorf("round trip %q -> %q", s, c.String())
		}
	}
	for _, s := range []string{"", "A", "♠1", "♠", "xK"} {
		if _, err := ParseCard(s); err == nil {
			t.Errorf("ParseCard(%q) should fail", s)
		}
	}

	if v := NewCard(14, 2).Value(); v != 14 {
		t.Errorf("ace value = %d, want 14", v)
	}
}

func TestShoe(t *testing.T) {
	src := engine.NewSeededSource(engine.Seeds{Server: "shoe_server", Client: "shoe_client"}, 1)
	shoe := NewShoe(6, src)
	if shoe.Remaining() != 312 {
		t.Fatalf("six decks should hold 312 cards, got %d", shoe.Remaining())
	}

	counts := make(map[Card]int)
	for shoe.Remaining() > 0 {
		counts[shoe.Draw()]++
	}
	if len(counts) != 52 {
		t.Errorf("expected 52 distinct cards, got %d", len(counts))
	}
	for c, n := range counts {
		if n != 6 {
			t.Errorf("card %s appears %d times, want 6", c, n)
		}
	}

	// identical seeds shuffle identically
	a := NewShoe(1, engine.NewSeededSource(engine.Seeds{Server: "s", Client: "c"}, 3))
	b := NewShoe(1, engine.NewSeededSource(engine.Seeds{Server: "s", Client: "c"}, 3))
	for i := 0; i < 52; i++ {
		if ca, cb := a.Draw(), b.Draw(); ca != cb {
			t.Fatalf("card %d differs: %s vs %s", i, ca, cb)
		}
	}
}

func TestShoeExhaustedPanics(t *testing.T) {
	shoe := ShoeFromCards(mustCards(t, "♠A"))
	shoe.Draw()
	defer func() {
		if recover() == nil {
			t.Error("expected panic drawing from an empty shoe")
		}
	}()
	shoe.Draw()
}

func TestWarGame(t *testing.T) {
	fixed := func(cards []Card) func(engine.Source) *Shoe {
		return func(engine.Source) *Shoe { return ShoeFromCards(cards) }
	}

	tests := []struct {
		name       string
		cards      []string
		tie        string
		stake      Stake
		wantResult string
		wantFactor float64
		wantExtra  float64
	}{
		{"player high", []string{"♠K", "♥5"}, "", stakeOf(10, 90), WarResultWin, 2, 0},
		{"dealer high", []string{"♠4", "♥A"}, "", stakeOf(10, 90), WarResultLoss, 0, 0},
		{"surrender", []string{"♠9", "♥9"}, "surrender", stakeOf(10, 90), WarResultSurrender, 0.5, 0},
		{"war win", []string{"♠9", "♥9", "♦2", "♦3", "♦4", "♣A", "♣2"}, "war", stakeOf(10, 90), WarResultWarWin, 4, 1},
		{"war push", []string{"♠9", "♥9", "♦2", "♦3", "♦4", "♣Q", "♠Q"}, "war", stakeOf(10, 90), WarResultWarPush, 2, 1},
		{"war loss", []string{"♠9", "♥9", "♦2", "♦3", "♦4", "♣2", "♠Q"}, "", stakeOf(10, 90), WarResultWarLoss, 0, 1},
		{"war unaffordable", []string{"♠9", "♥9"}, "war", stakeOf(10, 9.99), WarResultSurrender, 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := &WarGame{Shoe: fixed(mustCards(t, tt.cards...))}
			params := map[string]any{}
			if tt.tie != "" {
				params["tie"] = tt.tie
			}
			out, err := game.Resolve(engine.NewSequence(0), tt.stake, params)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			d := out.Details.(WarOutcome)
			if d.Result != tt.wantResult {
				t.Errorf("result = %s, want %s", d.Result, tt.wantResult)
			}
			if out.Factor != tt.wantFactor {
				t.Errorf("factor = %v, want %v", out.Factor, tt.wantFactor)
			}
			if out.ExtraStake != tt.wantExtra {
				t.Errorf("extra stake = %v, want %v", out.ExtraStake, tt.wantExtra)
			}
			if tt.wantExtra > 0 && len(d.Burned) != 3 {
				t.Errorf("war should burn 3 cards, burned %d", len(d.Burned))
			}
		})
	}

	game := &WarGame{}
	if err := game.Validate(map[string]any{"tie": "fold"}); err == nil {
		t.Error("unknown tie policy should be rejected")
	}
	out, err := game.Resolve(engine.NewSeededSource(engine.Seeds{Server: "w", Client: "c"}, 0), stakeOf(1, 10), nil)
	if err != nil {
		t.Fatalf("resolve with real shoe: %v", err)
	}
	if out.Details.(WarOutcome).TiePolicy != WarTieWar {
		t.Error("default tie policy should be war")
	}
}

func TestRacing(t *testing.T) {
	race, err := SimulateRace(engine.NewSequence(0.5))
	if err != nil {
		t.Fatalf("SimulateRace: %v", err)
	}
	if race.Winner != 1 {
		t.Errorf("identical cars should finish in lane order, winner = %d", race.Winner)
	}
	for i, s := range race.StartSpeeds {
		if math.Abs(s-0.5) > 1e-12 {
			t.Errorf("car %d start speed = %v, want 0.5", i+1, s)
		}
	}
	for _, zone := range race.Zones[0] {
		if zone.Position != 45 || zone.Type != -1 {
			t.Errorf("zone = %+v, want position 45 type -1", zone)
		}
	}

	src := engine.NewSeededSource(engine.Seeds{Server: "race_server", Client: "race_client"}, 0)
	for nonce := 0; nonce < 50; nonce++ {
		src.Advance()
		race, err := SimulateRace(src)
		if err != nil {
			t.Fatalf("nonce %d: %v", nonce, err)
		}
		if race.Winner < 1 || race.Winner > RacingCars {
			t.Fatalf("nonce %d: winner %d out of range", nonce, race.Winner)
		}
		// positions entering the final tick decide the winner
		before := race.Frames[len(race.Frames)-2]
		if before[race.Winner-1] < raceLength {
			t.Errorf("nonce %d: winner had only reached %v", nonce, before[race.Winner-1])
		}
		for i := 0; i < race.Winner-1; i++ {
			if before[i] >= raceLength {
				t.Errorf("nonce %d: car %d had finished but lost to car %d", nonce, i+1, race.Winner)
			}
		}
	}

	game := &RacingGame{}
	out, err := game.Resolve(engine.NewSequence(0.5), stakeOf(1, 0), map[string]any{"car": 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.Factor != RacingMultiplier {
		t.Errorf("factor = %v, want %v", out.Factor, RacingMultiplier)
	}
	for _, bad := range []any{0, 4, "x"} {
		if err := game.Validate(map[string]any{"car": bad}); err == nil {
			t.Errorf("car %v should be rejected", bad)
		}
	}
}

func TestHandValue(t *testing.T) {
	tests := []struct {
		cards    []string
		want     int
		wantSoft bool
	}{
		{[]string{"♠A", "♥K"}, 21, true},
		{[]string{"♠A", "♥A", "♦9"}, 21, true},
		{[]string{"♠A", "♥A", "♦K"}, 12, false},
		{[]string{"♠K", "♥Q", "♦5"}, 25, false},
		{[]string{"♠7", "♥A"}, 18, true},
		{[]string{"♠10", "♥J"}, 20, false},
	}
	for _, tt := range tests {
		got, soft := HandValue(mustCards(t, tt.cards...))
		if got != tt.want || soft != tt.wantSoft {
			t.Errorf("HandValue(%v) = %d soft=%v, want %d soft=%v", tt.cards, got, soft, tt.want, tt.wantSoft)
		}
	}

	if !IsNatural(mustCards(t, "♠A", "♥Q")) {
		t.Error("A+Q is a natural")
	}
	if IsNatural(mustCards(t, "♠7", "♥7", "♦7")) {
		t.Error("three-card 21 is not a natural")
	}
	if DealerShouldHit(mustCards(t, "♠A", "♥6")) {
		t.Error("dealer stands on soft 17")
	}
	if !DealerShouldHit(mustCards(t, "♠10", "♥6")) {
		t.Error("dealer hits 16")
	}
}

func TestBlackjackFactor(t *testing.T) {
	tests := []struct {
		name   string
		player []string
		dealer []string
		want   float64
	}{
		{"both natural", []string{"♠A", "♥K"}, []string{"♦A", "♣Q"}, 1},
		{"player natural", []string{"♠A", "♥K"}, []string{"♦10", "♣Q"}, 2.5},
		{"dealer natural", []string{"♠10", "♥K"}, []string{"♦A", "♣Q"}, 0},
		{"player bust", []string{"♠10", "♥K", "♦5"}, []string{"♦10", "♣8"}, 0},
		{"dealer bust", []string{"♠10", "♥8"}, []string{"♦10", "♣6", "♠9"}, 2},
		{"higher total", []string{"♠10", "♥9"}, []string{"♦10", "♣8"}, 2},
		{"push", []string{"♠10", "♥8"}, []string{"♦10", "♣8"}, 1},
		{"lower total", []string{"♠10", "♥7"}, []string{"♦10", "♣8"}, 0},
		{"three-card 21 beats 20", []string{"♠7", "♥7", "♦7"}, []string{"♦10", "♣Q"}, 2},
	}
	for _, tt := range tests {
		got, _ := BlackjackFactor(mustCards(t, tt.player...), mustCards(t, tt.dealer...))
		if got != tt.want {
			t.Errorf("%s: factor = %v, want %v", tt.name, got, tt.want)
		}
	}
}
