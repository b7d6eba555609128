package scripting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// State represents the scripting engine's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// BetPlacer is the interface the engine uses to place bets.
type BetPlacer interface {
	// PlaceBet places a bet using the current variable state and returns the result.
	PlaceBet(ctx context.Context, vars *Variables) (*BetResult, error)
}

// MultiRoundPlacer extends BetPlacer with progressive games (mines,
// blackjack). The engine drives the action loop.
type MultiRoundPlacer interface {
	// PlaceNextAction sends the next action for an active round and reports
	// whether the round is still active afterwards.
	PlaceNextAction(ctx context.Context, game string, action interface{}) (*BetResult, bool, error)

	// Cashout ends the active round on the player's terms.
	Cashout(ctx context.Context, game string) (*BetResult, error)
}

// BetResult is a round as the script sees it. Amount includes any extra
// stake taken during the round; Active marks a mines or blackjack round
// still waiting for actions.
type BetResult struct {
	RoundID     string  `json:"roundId,omitempty"`
	Game        string  `json:"game"`
	Amount      float64 `json:"amount"`
	Payout      float64 `json:"payout"`
	PayoutMulti float64 `json:"payoutMultiplier"`
	Win         bool    `json:"win"`
	Roll        float64 `json:"roll"`
	Summary     string  `json:"summary,omitempty"`
	Balance     float64 `json:"balance"`
	Active      bool    `json:"active,omitempty"`
}

// maxActions bounds the inner action loop of one progressive round.
const maxActions = 100

// EventEmitter allows the engine to push state updates to a listener.
type EventEmitter interface {
	EmitScriptState(state EngineSnapshot)
	EmitScriptLog(entries []LogEntry)
}

// EngineSnapshot is a serializable snapshot of the engine state.
type EngineSnapshot struct {
	State         State        `json:"state"`
	Error         string       `json:"error,omitempty"`
	Stats         *Statistics  `json:"stats"`
	Chart         []ChartPoint `json:"chart"`
	CurrentGame   string       `json:"currentGame"`
	BetsPerSecond float64      `json:"betsPerSecond"`
}

// Engine is the main scripting engine that orchestrates the bet lifecycle.
type Engine struct {
	mu     sync.RWMutex
	state  State
	err    error
	cancel context.CancelFunc
	done   chan struct{}

	vm    *sandbox
	vars  *Variables
	stats *Statistics
	chart *ProfitChart

	betPlacer BetPlacer
	emitter   EventEmitter
	logger    *slog.Logger

	startTime time.Time
	lastEmit  time.Time
}

// NewEngine creates a new scripting engine. emitter may be nil.
func NewEngine(placer BetPlacer, emitter EventEmitter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		state:     StateIdle,
		betPlacer: placer,
		emitter:   emitter,
		logger:    logger.With("component", "scripting"),
	}
}

// Start begins script execution. The script source is executed once to
// register dobet() (and optionally round()), then the bet loop begins.
func (e *Engine) Start(script string, startBalance float64) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine is already running")
	}

	// Initialize fresh state
	e.stats = NewStatistics(startBalance)
	e.chart = NewProfitChart(chartPoints)
	e.vars = NewVariables(e.stats)
	e.vm = newSandbox()
	e.state = StateRunning
	e.err = nil
	e.startTime = time.Now()
	e.done = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	e.vm.push(e.vars)

	if err := e.vm.load(script); err != nil {
		e.setError(err)
		cancel()
		close(e.done)
		return err
	}

	e.mu.Lock()
	e.vm.pull(e.vars)
	e.mu.Unlock()

	if !e.vm.defines(hookBet) {
		err := fmt.Errorf("script must define a dobet() function")
		e.setError(err)
		cancel()
		close(e.done)
		return err
	}

	e.mu.Lock()
	e.vars.Running = true
	e.vm.push(e.vars)
	e.mu.Unlock()

	e.emitState()
	e.logger.Info("script started", "game", e.vars.Game, "balance", startBalance)

	go e.betLoop(ctx)

	return nil
}

// Stop cancels the bet loop and waits for the round in flight to settle.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine is not running")
	}
	if e.cancel != nil {
		e.cancel()
	}
	done := e.done
	e.mu.Unlock()

	<-done

	e.mu.Lock()
	if e.state == StateRunning {
		e.state = StateStopped
	}
	e.vars.Running = false
	e.mu.Unlock()

	e.emitState()
	return nil
}

// Wait blocks until the bet loop has exited.
func (e *Engine) Wait() {
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// GetState returns the current engine snapshot.
func (e *Engine) GetState() EngineSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

// GetLogs returns the script log buffer.
func (e *Engine) GetLogs() []LogEntry {
	e.mu.RLock()
	vm := e.vm
	e.mu.RUnlock()
	if vm == nil {
		return nil
	}
	return vm.logs()
}

// betLoop is the main betting loop that runs in a goroutine.
func (e *Engine) betLoop(ctx context.Context) {
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			e.setError(fmt.Errorf("script panic: %v", r))
		}
	}()

	for {
		if ctx.Err() != nil || e.vm.stopRequested() {
			e.stopped()
			return
		}

		e.mu.RLock()
		nextBet := e.vars.NextBet
		vars := *e.vars
		e.mu.RUnlock()

		if nextBet <= 0 {
			e.setError(fmt.Errorf("nextbet must be > 0, got %f", nextBet))
			return
		}

		// 1. Place bet (initial round)
		result, err := e.betPlacer.PlaceBet(ctx, &vars)
		if err != nil {
			if ctx.Err() != nil {
				e.stopped()
				return
			}
			e.setError(fmt.Errorf("bet placement failed: %w", err))
			return
		}

		// 1b. Progressive games keep asking for actions until the round ends.
		if result.Active {
			mrPlacer, ok := e.betPlacer.(MultiRoundPlacer)
			if !ok {
				e.setError(fmt.Errorf("%s needs a placer that supports round actions", vars.Game))
				return
			}
			result, err = e.runMultiRoundLoop(ctx, mrPlacer, vars.Game, result)
			if err != nil {
				e.setError(fmt.Errorf("multi-round error: %w", err))
				return
			}
		}

		// 2. Update statistics and engine state under write lock.
		e.mu.Lock()
		e.stats.Record(*result)
		e.stats.Balance = result.Balance

		// 3. Update variables from result
		e.vars.Win = result.Win
		e.vars.PreviousBet = result.Amount
		e.vars.Balance = result.Balance
		e.vars.CurrentBet = nil
		e.vars.LastBet = map[string]interface{}{
			"amount":           result.Amount,
			"win":              result.Win,
			"payout":           result.Payout,
			"payoutMultiplier": result.PayoutMulti,
			"roll":             result.Roll,
			"summary":          result.Summary,
		}

		e.vm.push(e.vars)

		e.chart.Add(ChartPoint{
			BetNumber: e.stats.Bets,
			Profit:    e.stats.Profit,
			Win:       result.Win,
		})
		e.mu.Unlock()

		// 4. Call dobet()
		if _, err := e.vm.call(hookBet); err != nil {
			e.setError(err)
			return
		}

		e.mu.Lock()
		e.vm.pull(e.vars)
		if e.vm.takeReset() {
			e.stats.Reset()
			e.chart.Clear()
			e.vm.push(e.vars)
		}
		stopOnWin := e.vars.StopOnWin
		e.mu.Unlock()

		if e.vm.stopRequested() || (stopOnWin && result.Win) {
			e.stopped()
			return
		}

		e.throttledEmitState()

		if pause := e.vm.takePause(); pause > 0 {
			select {
			case <-ctx.Done():
				e.stopped()
				return
			case <-time.After(pause):
			}
		}
	}
}

// runMultiRoundLoop asks round() (or the preset variables when round() is
// not defined) for the next action until the round ends. A cancelled
// context cashes out so a stopped script never leaves a round open.
func (e *Engine) runMultiRoundLoop(ctx context.Context, mrPlacer MultiRoundPlacer, game string, current *BetResult) (*BetResult, error) {
	hasRound := e.vm.defines(hookRound)

	for step := 0; step < maxActions; step++ {
		if ctx.Err() != nil || e.vm.stopRequested() {
			return mrPlacer.Cashout(context.WithoutCancel(ctx), game)
		}

		e.mu.Lock()
		e.vars.CashoutDone = false
		e.vars.CurrentBet = map[string]interface{}{
			"active":     true,
			"round":      step,
			"game":       game,
			"amount":     current.Amount,
			"multiplier": current.PayoutMulti,
		}
		e.vm.push(e.vars)
		e.mu.Unlock()

		var action interface{}
		if hasRound {
			actionVal, err := e.vm.call(hookRound)
			if err != nil {
				return nil, err
			}
			if !isUndefinedOrNull(actionVal) {
				action = actionVal.Export()
			}
		}

		e.mu.Lock()
		e.vm.pull(e.vars)
		cashout := e.vars.CashoutDone
		if action == nil && !hasRound {
			action = presetAction(game, e.vars, step)
		}
		e.mu.Unlock()

		if cashout || action == nil || isCashout(action) {
			return mrPlacer.Cashout(ctx, game)
		}

		next, stillActive, err := mrPlacer.PlaceNextAction(ctx, game, action)
		if err != nil {
			return nil, fmt.Errorf("next action failed: %w", err)
		}
		if next != nil {
			current = next
		}
		if !stillActive {
			return current, nil
		}
	}

	return mrPlacer.Cashout(ctx, game)
}

// presetAction plays a progressive round from variables alone: mines
// reveals fields in order, blackjack repeats action.
func presetAction(game string, vars *Variables, step int) interface{} {
	switch game {
	case "mines":
		if step < len(vars.Fields) {
			return vars.Fields[step]
		}
	case "blackjack":
		return vars.Action
	}
	return nil
}

func isCashout(action interface{}) bool {
	switch v := action.(type) {
	case int64:
		return v == MinesCashout
	case int:
		return v == MinesCashout
	case float64:
		return v == MinesCashout
	case string:
		return v == "cashout"
	}
	return false
}

func (e *Engine) stopped() {
	e.mu.Lock()
	if e.state == StateRunning {
		e.state = StateStopped
	}
	if e.vars != nil {
		e.vars.Running = false
	}
	bets := 0
	if e.stats != nil {
		bets = e.stats.Bets
	}
	e.mu.Unlock()
	e.logger.Info("script stopped", "bets", bets)
	e.emitState()
}

func (e *Engine) setError(err error) {
	e.mu.Lock()
	e.state = StateError
	e.err = err
	if e.vars != nil {
		e.vars.Running = false
	}
	e.mu.Unlock()
	e.logger.Warn("script stopped with error", "error", err)
	e.emitState()
}

func (e *Engine) snapshot() EngineSnapshot {
	snap := EngineSnapshot{
		State: e.state,
	}
	if e.err != nil {
		snap.Error = e.err.Error()
	}
	if e.stats != nil {
		statsCopy := *e.stats
		snap.Stats = &statsCopy
	}
	if e.chart != nil {
		snap.Chart = e.chart.Points()
	}
	if e.vars != nil {
		snap.CurrentGame = e.vars.Game
	}
	if e.state == StateRunning && e.stats != nil && e.stats.Bets > 0 {
		elapsed := time.Since(e.startTime).Seconds()
		if elapsed > 0 {
			snap.BetsPerSecond = float64(e.stats.Bets) / elapsed
		}
	}
	return snap
}

func (e *Engine) emitState() {
	if e.emitter == nil {
		return
	}
	e.mu.Lock()
	snap := e.snapshot()
	e.lastEmit = time.Now()
	vm := e.vm
	e.mu.Unlock()
	e.emitter.EmitScriptState(snap)
	if vm != nil {
		e.emitter.EmitScriptLog(vm.logs())
	}
}

// throttledEmitState only emits if at least 100ms have passed since the last emission.
func (e *Engine) throttledEmitState() {
	e.mu.RLock()
	last := e.lastEmit
	e.mu.RUnlock()
	if time.Since(last) < 100*time.Millisecond {
		return
	}
	e.emitState()
}

func isUndefinedOrNull(v interface{}) bool {
	if v == nil {
		return true
	}
	if gv, ok := v.(goja.Value); ok {
		return goja.IsUndefined(gv) || goja.IsNull(gv)
	}
	return false
}
