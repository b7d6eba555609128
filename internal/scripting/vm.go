package scripting

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
)

// Script hooks. dobet runs after every settled round; round picks the next
// action of a mines or blackjack round and may be omitted.
const (
	hookBet   = "dobet"
	hookRound = "round"
)

const (
	loadTimeout = 2 * time.Second
	hookTimeout = time.Second
	logLimit    = 500
)

// ErrScriptTimeout is returned when a script runs past its time budget.
var ErrScriptTimeout = errors.New("script timed out")

// globals a strategy script has no business reaching
var blockedGlobals = []string{"require", "fetch", "XMLHttpRequest", "eval", "Function"}

// LogEntry is one line written by log() or console.log().
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// logRing keeps the newest entries up to a fixed size.
type logRing struct {
	mu      sync.Mutex
	entries []LogEntry
	limit   int
}

func (r *logRing) add(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == r.limit {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.limit-1]
	}
	r.entries = append(r.entries, LogEntry{Time: time.Now(), Message: msg})
}

func (r *logRing) snapshot() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogEntry(nil), r.entries...)
}

// sandbox runs one strategy script. The goja runtime is not safe for
// concurrent use, so every access goes through mu; the control flags are
// set from inside script callbacks and read by the bet loop.
type sandbox struct {
	mu  sync.Mutex
	rt  *goja.Runtime
	log *logRing

	stop  atomic.Bool
	reset atomic.Bool
}

func newSandbox() *sandbox {
	sb := &sandbox{
		rt:  goja.New(),
		log: &logRing{limit: logLimit},
	}
	sb.installBuiltins()
	injectConstants(sb.rt)
	for _, name := range blockedGlobals {
		sb.rt.Set(name, goja.Undefined())
	}
	return sb
}

func (sb *sandbox) installBuiltins() {
	write := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		sb.log.add(strings.Join(parts, " "))
		return goja.Undefined()
	}
	sb.rt.Set("log", write)
	console := sb.rt.NewObject()
	console.Set("log", write)
	sb.rt.Set("console", console)

	sb.rt.Set("stop", func(goja.FunctionCall) goja.Value {
		sb.stop.Store(true)
		sb.rt.Set("running", false)
		return goja.Undefined()
	})
	sb.rt.Set("resetstats", func(goja.FunctionCall) goja.Value {
		sb.reset.Store(true)
		return goja.Undefined()
	})
	// sleep(ms) is sugar for assigning sleeptime
	sb.rt.Set("sleep", func(call goja.FunctionCall) goja.Value {
		sb.rt.Set("sleeptime", call.Argument(0).ToInteger())
		return goja.Undefined()
	})
}

// guard runs fn with the runtime locked and interrupts it after limit.
func (sb *sandbox) guard(limit time.Duration, fn func(rt *goja.Runtime) error) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	timer := time.AfterFunc(limit, func() { sb.rt.Interrupt(ErrScriptTimeout) })
	defer func() {
		timer.Stop()
		sb.rt.ClearInterrupt()
	}()

	err := fn(sb.rt)
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrScriptTimeout
	}
	return err
}

// load evaluates the script body, which defines the hooks and may preset
// variables.
func (sb *sandbox) load(source string) error {
	return sb.guard(loadTimeout, func(rt *goja.Runtime) error {
		if _, err := rt.RunString(source); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
}

func hookFunc(rt *goja.Runtime, name string) (goja.Callable, bool) {
	v := rt.Get(name)
	if isUndefinedOrNull(v) {
		return nil, false
	}
	return goja.AssertFunction(v)
}

// defines reports whether the script declared hook as a function.
func (sb *sandbox) defines(hook string) bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	_, ok := hookFunc(sb.rt, hook)
	return ok
}

// call invokes a hook and returns what it returned.
func (sb *sandbox) call(hook string) (goja.Value, error) {
	var out goja.Value
	err := sb.guard(hookTimeout, func(rt *goja.Runtime) error {
		fn, ok := hookFunc(rt, hook)
		if !ok {
			return fmt.Errorf("%s() is not defined as a function", hook)
		}
		v, err := fn(goja.Undefined())
		if err != nil {
			return fmt.Errorf("%s(): %w", hook, err)
		}
		out = v
		return nil
	})
	return out, err
}

func (sb *sandbox) stopRequested() bool { return sb.stop.Load() }

// takeReset reports and clears a resetstats() request.
func (sb *sandbox) takeReset() bool { return sb.reset.Swap(false) }

// push writes vars into the script globals.
func (sb *sandbox) push(vars *Variables) {
	sb.mu.Lock()
	injectVariables(sb.rt, vars)
	sb.mu.Unlock()
}

// pull copies the variables a script may change back into vars.
func (sb *sandbox) pull(vars *Variables) {
	sb.mu.Lock()
	syncFromVM(sb.rt, vars)
	sb.mu.Unlock()
}

// takePause returns the delay the script asked for before the next bet
// and clears it.
func (sb *sandbox) takePause() time.Duration {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	ms := toInt(sb.rt.Get("sleeptime"))
	sb.rt.Set("sleeptime", 0)
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func (sb *sandbox) logs() []LogEntry { return sb.log.snapshot() }
