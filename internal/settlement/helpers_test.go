package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// flakyKV fails writes while failSets is true, and the single write
// armed by failNthSet.
type flakyKV struct {
	*ledger.MemoryKV
	mu       sync.Mutex
	failSets bool
	countTo  int
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failSets
	if f.countTo > 0 {
		f.countTo--
		fail = fail || f.countTo == 0
	}
	f.mu.Unlock()
	if fail {
		return errors.New("storage quota exceeded")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

// failNthSet fails the nth write from now, counting from 1.
func (f *flakyKV) failNthSet(n int) {
	f.mu.Lock()
	f.countTo = n
	f.mu.Unlock()
}

func (f *flakyKV) setFailing(v bool) {
	f.mu.Lock()
	f.failSets = v
	f.mu.Unlock()
}

type transition struct {
	game     games.Kind
	from, to State
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []transition
	settled     []Result
}

func (o *recordingObserver) Transition(game games.Kind, from, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition{game, from, to})
}

func (o *recordingObserver) Settled(res Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settled = append(o.settled, res)
}

type memoryHistory struct {
	mu     sync.Mutex
	rounds []Result
	err    error
}

func (h *memoryHistory) RecordRound(_ context.Context, res Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.rounds = append(h.rounds, res)
	return nil
}

type fixture struct {
	kv       *flakyKV
	ledger   *ledger.Ledger
	observer *recordingObserver
	history  *memoryHistory
	clock    time.Time
}

func newFixture(t *testing.T, balance string) *fixture {
	t.Helper()
	kv := &flakyKV{MemoryKV: ledger.NewMemoryKV()}
	l, err := ledger.Open(context.Background(), kv, "test", d(balance), nil)
	require.NoError(t, err)
	return &fixture{
		kv:       kv,
		ledger:   l,
		observer: &recordingObserver{},
		history:  &memoryHistory{},
		clock:    time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func (f *fixture) options(src engine.Source) Options {
	return Options{
		Wallet:    f.ledger,
		Source:    src,
		KV:        f.kv,
		CasinoID:  "test",
		History:   f.history,
		Observers: []Observer{f.observer},
		Now:       func() time.Time { return f.clock },
	}
}

func fixedShoe(t *testing.T, specs ...string) func(engine.Source) *games.Shoe {
	t.Helper()
	cards := make([]games.Card, len(specs))
	for i, s := range specs {
		c, err := games.ParseCard(s)
		require.NoError(t, err)
		cards[i] = c
	}
	return func(engine.Source) *games.Shoe { return games.ShoeFromCards(cards) }
}

// gatedSource blocks the first draw until released.
type gatedSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSource() *gatedSource {
	return &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) Draw() float64 {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return 0
}
