package games

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// Kind tags each game; settlement dispatches on it.
type Kind string

const (
	KindRoulette  Kind = "roulette"
	KindCoin      Kind = "coin"
	KindDice      Kind = "dice"
	KindSlots     Kind = "slots"
	KindWar       Kind = "war"
	KindRacing    Kind = "racing"
	KindWheel     Kind = "wheel"
	KindMines     Kind = "mines"
	KindBlackjack Kind = "blackjack"
	KindPoker     Kind = "poker"
)

// HouseEdge is the 0.98 factor shared by dice, mines and poker payouts.
const HouseEdge = 0.98

// ErrInvalidSelection covers any out-of-range or malformed bet selection.
var ErrInvalidSelection = errors.New("invalid selection")

func invalidSelection(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSelection, fmt.Sprintf(format, args...))
}

// GameSpec describes a single-draw game.
type GameSpec struct {
	ID        Kind   `json:"id"`
	Name      string `json:"name"`
	Stakeless bool   `json:"stakeless,omitempty"`
	// Selection documents the params the game accepts.
	Selection string `json:"selection"`
}

// Stake is the part of the wager a game may look at while resolving.
// Available is the balance left after the bet was debited.
type Stake struct {
	Bet       decimal.Decimal
	Available decimal.Decimal
}

// CanCover reports whether another bet-sized stake is affordable.
func (s Stake) CanCover(units float64) bool {
	return s.Available.GreaterThanOrEqual(s.Bet.Mul(decimal.NewFromFloat(units)))
}

// Outcome is the immutable result of one draw. Factor is the total return
// per unit of the original bet, ExtraStake an additional stake (in bet
// units) taken before payout and Award a fixed credit for stakeless games.
type Outcome struct {
	Game       Kind    `json:"game"`
	Factor     float64 `json:"factor"`
	ExtraStake float64 `json:"extra_stake,omitempty"`
	Award      float64 `json:"award,omitempty"`
	Win        bool    `json:"win"`
	Summary    string  `json:"summary"`
	Details    any     `json:"details,omitempty"`
}

// Game is implemented by every single-draw game.
type Game interface {
	Spec() GameSpec
	Validate(params map[string]any) error
	Resolve(src engine.Source, stake Stake, params map[string]any) (Outcome, error)
}

// Registry maps game kinds to implementations.
type Registry struct {
	games map[Kind]Game
}

// NewRegistry registers the given games, later entries replacing earlier ones.
func NewRegistry(games ...Game) *Registry {
	r := &Registry{games: make(map[Kind]Game, len(games))}
	for _, g := range games {
		r.games[g.Spec().ID] = g
	}
	return r
}

// DefaultRegistry holds every single-draw game.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&RouletteGame{},
		&CoinGame{},
		&DiceGame{},
		&SlotsGame{},
		&WarGame{},
		&RacingGame{},
		&WheelGame{},
	)
}

// Get retrieves a game by kind.
func (r *Registry) Get(kind Kind) (Game, bool) {
	g, ok := r.games[kind]
	return g, ok
}

// Specs returns all registered specs ordered by id.
func (r *Registry) Specs() []GameSpec {
	specs := make([]GameSpec, 0, len(r.games))
	for _, g := range r.games {
		specs = append(specs, g.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func paramString(params map[string]any, key string) (string, bool) {
	if params == nil {
		return "", false
	}
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v)), true
	case fmt.Stringer:
		return strings.ToLower(v.String()), true
	default:
		return strings.ToLower(fmt.Sprint(v)), true
	}
}

// IntParam reads an integer selection parameter.
func IntParam(params map[string]any, key string) (int, bool, error) {
	return paramInt(params, key)
}

// StringParam reads a selection parameter as a lower-cased string.
func StringParam(params map[string]any, key string) (string, bool) {
	return paramString(params, key)
}

func paramInt(params map[string]any, key string) (int, bool, error) {
	if params == nil {
		return 0, false, nil
	}
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, true, invalidSelection("%s must be a whole number, got %v", key, v)
		}
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, true, invalidSelection("%s must be a number, got %q", key, v)
		}
		return n, true, nil
	default:
		return 0, true, invalidSelection("unsupported %s type %T", key, raw)
	}
}
