package scripting

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Actions a round() callback may return.
const (
	MinesCashout   = -1
	BlackjackHit   = "hit"
	BlackjackStand = "stand"
)

// injectConstants sets read-only action constants on the JS runtime.
func injectConstants(vm *goja.Runtime) {
	vm.Set("MINES_CASHOUT", MinesCashout)
	vm.Set("BLACKJACK_HIT", BlackjackHit)
	vm.Set("BLACKJACK_STAND", BlackjackStand)

	vm.Set("DICE_EXACT", "exact")
	vm.Set("DICE_LESS", "less")
	vm.Set("DICE_GREATER", "greater")
}

// injectVariables sets every script-visible global on the JS runtime.
// Read-only semantics are enforced in syncFromVM rather than at the JS
// property level.
func injectVariables(vm *goja.Runtime, vars *Variables) {
	// Core betting variables
	vm.Set("balance", vars.Balance)
	vm.Set("nextbet", vars.NextBet)
	vm.Set("basebet", vars.BaseBet)
	vm.Set("previousbet", vars.PreviousBet)
	vm.Set("win", vars.Win)
	vm.Set("running", vars.Running)

	// Statistics aliases
	vm.Set("bets", vars.Stats.Bets)
	vm.Set("wins", vars.Stats.Wins)
	vm.Set("losses", vars.Stats.Losses)
	vm.Set("winstreak", vars.Stats.WinStreak)
	vm.Set("losestreak", vars.Stats.LoseStreak)
	vm.Set("currentstreak", vars.Stats.CurrentStreak)
	vm.Set("profit", vars.Stats.Profit)
	vm.Set("currentprofit", vars.Stats.CurrentProfit)
	vm.Set("wagered", vars.Stats.Wagered)
	vm.Set("highest_profit", vars.Stats.HighestProfit)
	vm.Set("lowest_profit", vars.Stats.LowestProfit)
	vm.Set("highest_bet", vars.Stats.HighestBet)
	vm.Set("started_bal", vars.Stats.StartBal)

	vm.Set("game", vars.Game)

	// Dice
	vm.Set("mode", vars.Mode)
	vm.Set("target", vars.Target)

	// Coin
	vm.Set("side", vars.Side)

	// Roulette
	vm.Set("bettype", vars.BetType)
	vm.Set("betvalue", vars.BetValue)

	// Racing
	vm.Set("car", vars.Car)

	// Casino War
	vm.Set("tie", vars.TiePolicy)

	// Mines
	vm.Set("rows", vars.Rows)
	vm.Set("cols", vars.Cols)
	vm.Set("mines", vars.Mines)
	vm.Set("fields", vars.Fields)

	// Blackjack
	vm.Set("action", vars.Action)

	// Progressive round state, only meaningful inside round()
	vm.Set("currentBet", vars.CurrentBet)
	vm.Set("cashout_done", vars.CashoutDone)

	vm.Set("lastBet", vars.LastBet)

	// Control
	vm.Set("stoponwin", vars.StopOnWin)
	vm.Set("sleeptime", vars.SleepTime)
}

// syncFromVM reads mutable variables back from the JS runtime into vars.
// Only variables that scripts are allowed to modify are synced.
func syncFromVM(vm *goja.Runtime, vars *Variables) {
	vars.NextBet = toFloat64(vm.Get("nextbet"))
	vars.BaseBet = toFloat64(vm.Get("basebet"))

	vars.Game = strings.ToLower(toString(vm.Get("game")))

	vars.Mode = toString(vm.Get("mode"))
	vars.Target = toInt(vm.Get("target"))
	vars.Side = toString(vm.Get("side"))
	vars.BetType = toString(vm.Get("bettype"))
	vars.BetValue = toString(vm.Get("betvalue"))
	vars.Car = toInt(vm.Get("car"))
	vars.TiePolicy = toString(vm.Get("tie"))

	vars.Rows = toInt(vm.Get("rows"))
	vars.Cols = toInt(vm.Get("cols"))
	vars.Mines = toInt(vm.Get("mines"))
	vars.Fields = toIntSlice(vm.Get("fields"))

	vars.Action = toString(vm.Get("action"))
	vars.CashoutDone = toBool(vm.Get("cashout_done"))

	vars.StopOnWin = toBool(vm.Get("stoponwin"))
	vars.SleepTime = toInt(vm.Get("sleeptime"))
}

// Variables holds the complete state of all script globals.
type Variables struct {
	// Core betting
	Balance     float64 `json:"balance"`
	NextBet     float64 `json:"nextbet"`
	BaseBet     float64 `json:"basebet"`
	PreviousBet float64 `json:"previousbet"`
	Win         bool    `json:"win"`
	Running     bool    `json:"running"`

	// Statistics (pointer, shared with engine)
	Stats *Statistics `json:"-"`

	Game string `json:"game"`

	// Dice
	Mode   string `json:"mode"`
	Target int    `json:"target"`

	// Coin
	Side string `json:"side"`

	// Roulette
	BetType  string `json:"bettype"`
	BetValue string `json:"betvalue"`

	// Racing
	Car int `json:"car"`

	// Casino War
	TiePolicy string `json:"tie"`

	// Mines
	Rows   int   `json:"rows"`
	Cols   int   `json:"cols"`
	Mines  int   `json:"mines"`
	Fields []int `json:"fields"`

	// Blackjack
	Action string `json:"action"`

	CurrentBet  map[string]interface{} `json:"currentBet"`
	CashoutDone bool                   `json:"cashout_done"`

	// Last bet
	LastBet map[string]interface{} `json:"lastBet"`

	// Control
	StopOnWin bool `json:"stoponwin"`
	SleepTime int  `json:"sleeptime"`
}

// NewVariables creates a Variables with defaults for every game.
func NewVariables(stats *Statistics) *Variables {
	return &Variables{
		Stats:     stats,
		Balance:   stats.Balance,
		Game:      "dice",
		Mode:      "less",
		Target:    7,
		Side:      "heads",
		BetType:   "color",
		BetValue:  "red",
		Car:       1,
		TiePolicy: "war",
		Rows:      5,
		Cols:      5,
		Mines:     3,
		Fields:    []int{0, 1},
		Action:    BlackjackStand,
		LastBet: map[string]interface{}{
			"amount":           0.0,
			"win":              false,
			"payout":           0.0,
			"payoutMultiplier": 0.0,
			"roll":             0.0,
			"summary":          "",
		},
	}
}

// Params renders the selection for the current game.
func (v *Variables) Params() map[string]any {
	switch v.Game {
	case "dice":
		return map[string]any{"mode": v.Mode, "target": v.Target}
	case "coin":
		return map[string]any{"side": v.Side}
	case "roulette":
		return map[string]any{"type": v.BetType, "value": v.BetValue}
	case "racing":
		return map[string]any{"car": v.Car}
	case "war":
		return map[string]any{"tie": v.TiePolicy}
	}
	return nil
}

// --- Conversion helpers ---

func toFloat64(v goja.Value) float64 {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return v.ToFloat()
}

func toInt(v goja.Value) int {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return int(v.ToInteger())
}

func toBool(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	return v.ToBoolean()
}

func toString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func toIntSlice(v goja.Value) []int {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj := v.ToObject(nil)
	if obj == nil {
		return nil
	}
	lengthVal := obj.Get("length")
	if lengthVal == nil || goja.IsUndefined(lengthVal) {
		return nil
	}
	length := int(lengthVal.ToInteger())
	result := make([]int, length)
	for i := 0; i < length; i++ {
		val := obj.Get(fmt.Sprintf("%d", i))
		if val != nil && !goja.IsUndefined(val) {
			result[i] = int(val.ToInteger())
		}
	}
	return result
}
