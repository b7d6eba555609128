package scriptstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MJE43/casino-settle-go/internal/scripting"
)

const writeTimeout = 5 * time.Second

// Recorder turns engine state changes into session rows. It implements
// scripting.EventEmitter; Begin must be called with the script source
// before the engine is started.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	next   scripting.EventEmitter

	mu      sync.Mutex
	source  string
	current string
}

// NewRecorder records into store and forwards every event to next, which
// may be nil.
func NewRecorder(store *Store, next scripting.EventEmitter, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, next: next, logger: logger.With("component", "scriptstore")}
}

// Begin sets the source stored with the next session.
func (r *Recorder) Begin(source string) {
	r.mu.Lock()
	r.source = source
	r.mu.Unlock()
}

// Current returns the id of the open session, if any.
func (r *Recorder) Current() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != ""
}

func (r *Recorder) EmitScriptState(snap scripting.EngineSnapshot) {
	r.record(snap)
	if r.next != nil {
		r.next.EmitScriptState(snap)
	}
}

func (r *Recorder) EmitScriptLog(entries []scripting.LogEntry) {
	if r.next != nil {
		r.next.EmitScriptLog(entries)
	}
}

func (r *Recorder) record(snap scripting.EngineSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch snap.State {
	case scripting.StateRunning:
		if r.current != "" {
			return
		}
		start := 0.0
		if snap.Stats != nil {
			start = snap.Stats.StartBal
		}
		id, err := r.store.CreateSession(ctx, snap.CurrentGame, r.source, start)
		if err != nil {
			r.logger.Warn("script session not recorded", "error", err)
			return
		}
		r.current = id
	case scripting.StateStopped, scripting.StateError:
		if r.current == "" {
			return
		}
		out := Outcome{State: string(snap.State), Error: snap.Error}
		if st := snap.Stats; st != nil {
			out.FinalBalance = st.Balance
			out.Bets = st.Bets
			out.Wins = st.Wins
			out.Losses = st.Losses
			out.Profit = st.Profit
			out.Wagered = st.Wagered
			out.HighestStreak = st.HighestStreak
			out.LowestStreak = st.LowestStreak
		}
		if err := r.store.EndSession(ctx, r.current, out); err != nil {
			r.logger.Warn("script session end not recorded", "session_id", r.current, "error", err)
		}
		r.current = ""
	}
}
