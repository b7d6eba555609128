package games

import (
	"fmt"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// WheelGame is the free bonus wheel: no stake, a fixed credit per segment.
type WheelGame struct{}

// WheelSegments lists the prize segments and their probabilities.
var WheelSegments = []engine.Weighted[float64]{
	{Value: 100, Probability: 0.30},
	{Value: 200, Probability: 0.25},
	{Value: 300, Probability: 0.20},
	{Value: 500, Probability: 0.13},
	{Value: 1000, Probability: 0.07},
	{Value: 2000, Probability: 0.05},
}

var wheelTable = engine.MustWeightedTable(WheelSegments)

// WheelOutcome is the rendered spin.
type WheelOutcome struct {
	Segment int     `json:"segment"`
	Prize   float64 `json:"prize"`
}

func (g *WheelGame) Spec() GameSpec {
	return GameSpec{ID: KindWheel, Name: "Wheel of Fortune", Stakeless: true, Selection: "none"}
}

func (g *WheelGame) Validate(map[string]any) error { return nil }

func (g *WheelGame) Resolve(src engine.Source, _ Stake, _ map[string]any) (Outcome, error) {
	idx := wheelTable.PickIndex(src)
	prize := wheelTable.Value(idx)
	return Outcome{
		Game:    KindWheel,
		Win:     true,
		Award:   prize,
		Summary: fmt.Sprintf("wheel stopped on %g", prize),
		Details: WheelOutcome{Segment: idx, Prize: prize},
	}, nil
}

// WheelExpectedPrize is the mean credit of one spin.
func WheelExpectedPrize() float64 {
	ev := 0.0
	for i := 0; i < wheelTable.Len(); i++ {
		ev += wheelTable.Value(i) * wheelTable.Probability(i)
	}
	return ev
}
