// Package rtp estimates return-to-player by replaying many seeded rounds.
package rtp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/games"
)

var (
	ErrNoRounds     = errors.New("rtp: rounds must be positive")
	ErrStakelessRTP = errors.New("rtp: stakeless games have no return to player")
)

// Request describes one simulation. Rounds consecutive nonces starting at
// NonceStart are resolved with one unit staked per round.
type Request struct {
	Game       games.Kind     `json:"game"`
	Seeds      engine.Seeds   `json:"seeds"`
	NonceStart uint64         `json:"nonce_start"`
	Rounds     uint64         `json:"rounds"`
	Params     map[string]any `json:"params"`
	// Reveals is the cash-out point for mines; it reads rows, cols and
	// mines from Params.
	Reveals   int `json:"reveals,omitempty"`
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// Report is the aggregate over every simulated round.
type Report struct {
	Game      games.Kind `json:"game"`
	Rounds    uint64     `json:"rounds"`
	Wagered   float64    `json:"wagered"`
	Returned  float64    `json:"returned"`
	RTP       float64    `json:"rtp"`
	HouseEdge float64    `json:"house_edge"`
	HitRate   float64    `json:"hit_rate"`
	MaxFactor float64    `json:"max_factor"`
	Expected  *float64   `json:"expected,omitempty"`
	Elapsed   string     `json:"elapsed"`
	TimedOut  bool       `json:"timed_out,omitempty"`
}

// job is a batch of nonces to resolve
type job struct {
	start, end uint64
}

type tally struct {
	rounds    uint64
	wagered   float64
	returned  float64
	hits      uint64
	maxFactor float64
}

func (t *tally) add(o tally) {
	t.rounds += o.rounds
	t.wagered += o.wagered
	t.returned += o.returned
	t.hits += o.hits
	if o.maxFactor > t.maxFactor {
		t.maxFactor = o.maxFactor
	}
}

// roundFunc resolves the round at nonce and returns staked units and
// returned units.
type roundFunc func(src engine.Source) (staked, returned float64, err error)

// Simulator spreads nonces over one worker per GOMAXPROCS.
type Simulator struct {
	registry    *games.Registry
	workerCount int
	batchSize   uint64
}

// NewSimulator creates a simulator resolving games from registry.
func NewSimulator(registry *games.Registry) *Simulator {
	if registry == nil {
		registry = games.DefaultRegistry()
	}
	return &Simulator{
		registry:    registry,
		workerCount: runtime.GOMAXPROCS(0),
		batchSize:   8192,
	}
}

// Run simulates the request. A cancelled or timed-out context returns the
// partial report with TimedOut set.
func (s *Simulator) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Rounds == 0 {
		return nil, ErrNoRounds
	}
	if !req.Seeds.Valid() {
		return nil, fmt.Errorf("rtp: server and client seeds are required")
	}
	play, err := s.roundFor(req)
	if err != nil {
		return nil, err
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	jobs := make(chan job, s.workerCount*2)
	var total tally
	var firstErr error
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case j, ok := <-jobs:
					if !ok {
						return
					}
					local, err := s.processJob(runCtx, req.Seeds, j, play)
					mu.Lock()
					total.add(local)
					if err != nil && firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					if err != nil {
						cancel()
						return
					}
				case <-runCtx.Done():
					return
				}
			}
		}()
	}

	s.generateJobs(runCtx, jobs, req.NonceStart, req.NonceStart+req.Rounds-1)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	report := &Report{
		Game:      req.Game,
		Rounds:    total.rounds,
		Wagered:   total.wagered,
		Returned:  total.returned,
		MaxFactor: total.maxFactor,
		Elapsed:   time.Since(started).String(),
		TimedOut:  ctx.Err() != nil && total.rounds < req.Rounds,
	}
	if total.wagered > 0 {
		report.RTP = total.returned / total.wagered
		report.HouseEdge = 1 - report.RTP
	}
	if total.rounds > 0 {
		report.HitRate = float64(total.hits) / float64(total.rounds)
	}
	if exp, ok := Expected(req.Game, req.Params, req.Reveals); ok {
		report.Expected = &exp
	}
	return report, nil
}

func (s *Simulator) processJob(ctx context.Context, seeds engine.Seeds, j job, play roundFunc) (tally, error) {
	var t tally
	for nonce := j.start; nonce <= j.end; nonce++ {
		if nonce&0xff == 0 {
			select {
			case <-ctx.Done():
				return t, nil
			default:
			}
		}

		staked, returned, err := play(engine.NewSeededSource(seeds, nonce))
		if err != nil {
			return t, fmt.Errorf("nonce %d: %w", nonce, err)
		}
		t.rounds++
		t.wagered += staked
		t.returned += returned
		if returned > 0 {
			t.hits++
		}
		if returned > t.maxFactor {
			t.maxFactor = returned
		}
		if nonce == math.MaxUint64 {
			break
		}
	}
	return t, nil
}

// generateJobs creates job batches for optimal throughput
func (s *Simulator) generateJobs(ctx context.Context, jobs chan<- job, start, end uint64) {
	defer close(jobs)

	for current := start; current <= end; {
		batchEnd := current + s.batchSize - 1
		if batchEnd > end || batchEnd < current {
			batchEnd = end
		}

		select {
		case jobs <- job{start: current, end: batchEnd}:
			if batchEnd == end {
				return
			}
			current = batchEnd + 1
		case <-ctx.Done():
			return
		}
	}
}

func (s *Simulator) roundFor(req Request) (roundFunc, error) {
	if req.Game == games.KindMines {
		return minesRound(req.Params, req.Reveals)
	}

	g, ok := s.registry.Get(req.Game)
	if !ok {
		return nil, fmt.Errorf("rtp: unknown game %q", req.Game)
	}
	if g.Spec().Stakeless {
		return nil, ErrStakelessRTP
	}
	if err := g.Validate(req.Params); err != nil {
		return nil, err
	}

	// One unit staked against a bankroll that always covers a war.
	stake := games.Stake{Bet: decimal.NewFromInt(1), Available: decimal.NewFromInt(1 << 20)}
	return func(src engine.Source) (float64, float64, error) {
		out, err := g.Resolve(src, stake, req.Params)
		if err != nil {
			return 0, 0, err
		}
		return 1 + out.ExtraStake, out.Factor, nil
	}, nil
}

// minesRound reveals cells 0..reveals-1 and cashes out. Mines are placed
// uniformly so any fixed reveal order is equivalent to a random one.
func minesRound(params map[string]any, reveals int) (roundFunc, error) {
	rows, _, err := games.IntParam(params, "rows")
	if err != nil {
		return nil, err
	}
	cols, _, err := games.IntParam(params, "cols")
	if err != nil {
		return nil, err
	}
	mines, _, err := games.IntParam(params, "mines")
	if err != nil {
		return nil, err
	}
	if err := games.ValidateMinesBoard(rows, cols, mines); err != nil {
		return nil, err
	}
	total := rows * cols
	if reveals < 1 || reveals > total-mines {
		return nil, fmt.Errorf("rtp: reveals must be between 1 and %d, got %d", total-mines, reveals)
	}
	factor := games.FairMultiplier(total, mines, reveals) * games.HouseEdge

	return func(src engine.Source) (float64, float64, error) {
		for _, cell := range games.PlaceMines(src, total, mines) {
			if cell < reveals {
				return 1, 0, nil
			}
		}
		return 1, factor, nil
	}, nil
}

// Expected returns the closed-form RTP where one exists.
func Expected(kind games.Kind, params map[string]any, reveals int) (float64, bool) {
	switch kind {
	case games.KindDice:
		mode, ok := games.StringParam(params, "mode")
		if !ok {
			mode = string(games.DiceExact)
		}
		target, _, _ := games.IntParam(params, "target")
		m := games.DiceMode(mode)
		mult := games.DiceMultiplier(m, target)
		if mult == 0 {
			return 0, false
		}
		return mult * games.DiceWinProbability(m, target), true
	case games.KindCoin:
		side, _ := games.StringParam(params, "side")
		mult, ok := games.CoinMultipliers[side]
		if !ok {
			return 0, false
		}
		return mult * games.CoinProbability(side), true
	case games.KindMines:
		if reveals < 1 {
			return 0, false
		}
		return games.HouseEdge, true
	}
	return 0, false
}
