package metrics

import (
	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/settlement"
)

// Recorder feeds settlement events into the collectors.
type Recorder struct{}

var _ settlement.Observer = Recorder{}

// NewRecorder returns a settlement observer backed by the package collectors.
func NewRecorder() Recorder { return Recorder{} }

func (Recorder) Transition(game games.Kind, from, to settlement.State) {
	StateTransitions.WithLabelValues(string(game), string(from), string(to)).Inc()
}

func (Recorder) Settled(res settlement.Result) {
	game := string(res.Game)
	RoundsSettled.WithLabelValues(game, outcomeLabel(res)).Inc()

	stake := res.Bet.Add(res.ExtraStake)
	Wagered.WithLabelValues(game).Add(stake.InexactFloat64())
	Paid.WithLabelValues(game).Add(res.Payout.InexactFloat64())
	if stake.IsPositive() {
		PayoutFactor.WithLabelValues(game).Observe(res.Payout.Div(stake).InexactFloat64())
	}
}

func outcomeLabel(res settlement.Result) string {
	stake := res.Bet.Add(res.ExtraStake)
	switch {
	case res.Win:
		return OutcomeWin
	case stake.IsPositive() && res.Payout.Equal(stake):
		return OutcomePush
	default:
		return OutcomeLoss
	}
}
