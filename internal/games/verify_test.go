package games

import (
	"encoding/json"
	"testing"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

func TestRegistryVerify(t *testing.T) {
	reg := DefaultRegistry()
	seeds := engine.Seeds{Server: "verify_server", Client: "verify_client"}

	cases := []struct {
		kind   Kind
		params map[string]any
	}{
		{KindRoulette, map[string]any{"type": "color", "value": "red"}},
		{KindCoin, map[string]any{"side": "heads"}},
		{KindDice, map[string]any{"mode": "greater", "target": 6}},
		{KindSlots, nil},
		{KindWar, map[string]any{"tie": "war"}},
		{KindRacing, map[string]any{"car": 2}},
		{KindWheel, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			src := engine.NewSeededSource(seeds, 0)
			nonce := src.Advance()
			game, _ := reg.Get(tc.kind)
			settled, err := game.Resolve(src, stakeOf(5, 100), tc.params)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}

			replayed, err := reg.Verify(tc.kind, seeds, nonce, stakeOf(5, 100), tc.params)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			a, _ := json.Marshal(settled)
			b, _ := json.Marshal(replayed)
			if string(a) != string(b) {
				t.Errorf("replay differs:\n settled  %s\n replayed %s", a, b)
			}
		})
	}

	if _, err := reg.Verify(KindCoin, engine.Seeds{Server: "only"}, 1, Stake{}, map[string]any{"side": "heads"}); err == nil {
		t.Error("missing client seed should fail")
	}
	if _, err := reg.Verify("keno", seeds, 1, Stake{}, nil); err == nil {
		t.Error("unknown game should fail")
	}
}

func TestVerifyMines(t *testing.T) {
	seeds := engine.Seeds{Server: "verify_server", Client: "verify_client"}
	src := engine.NewSeededSource(seeds, 7)
	want := PlaceMines(src, 25, 5)

	got, err := VerifyMines(seeds, 7, 5, 5, 5)
	if err != nil {
		t.Fatalf("VerifyMines: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mines = %v, want %v", got, want)
		}
	}

	if _, err := VerifyMines(seeds, 7, 9, 9, 1); err == nil {
		t.Error("invalid board should fail")
	}
}
