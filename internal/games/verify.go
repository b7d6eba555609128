package games

import (
	"fmt"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// Verify replays a settled single-draw round from its seeds and nonce.
// The stake only matters for war, where affordability decides the tie path.
func (r *Registry) Verify(kind Kind, seeds engine.Seeds, nonce uint64, stake Stake, params map[string]any) (Outcome, error) {
	if !seeds.Valid() {
		return Outcome{}, fmt.Errorf("verify %s: server and client seeds are required", kind)
	}
	g, ok := r.Get(kind)
	if !ok {
		return Outcome{}, invalidSelection("unknown game %q", kind)
	}
	return g.Resolve(engine.NewSeededSource(seeds, nonce), stake, params)
}

// VerifyMines replays the mine layout of a mines round.
func VerifyMines(seeds engine.Seeds, nonce uint64, rows, cols, mineCount int) ([]int, error) {
	if !seeds.Valid() {
		return nil, fmt.Errorf("verify mines: server and client seeds are required")
	}
	if err := ValidateMinesBoard(rows, cols, mineCount); err != nil {
		return nil, err
	}
	return PlaceMines(engine.NewSeededSource(seeds, nonce), rows*cols, mineCount), nil
}
