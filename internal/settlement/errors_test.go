package settlement

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("debit: %w", ledger.ErrInsufficientBalance), "Insufficient balance for this bet."},
		{ledger.ErrInvalidAmount, "Enter a bet amount greater than zero."},
		{fmt.Errorf("%w: bad", ErrInvalidMineCount), "That mine count is not allowed on this board."},
		{fmt.Errorf("%w: 37", games.ErrInvalidSelection), "That selection is not valid for this game."},
		{ErrRoundAlreadyInProgress, "Please wait for the current round to finish."},
		{ErrRoundNotActive, "There is no round in progress."},
		{&CooldownError{Remaining: 90*time.Minute + 4*time.Second}, "The wheel is cooling down, try again in 90 min 4 s."},
		{&CooldownError{Remaining: 1500 * time.Millisecond}, "The wheel is cooling down, try again in 2 s."},
		{errors.New("boom"), "Something went wrong, please try again."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Message(tt.err))
	}

	assert.ErrorIs(t, ErrInvalidMineCount, games.ErrInvalidSelection)
	assert.ErrorIs(t, &CooldownError{}, ErrCooldownActive)
}

func TestResultMessage(t *testing.T) {
	base := Result{
		Game:       games.KindSlots,
		Bet:        decimal.NewFromInt(10),
		ExtraStake: decimal.Zero,
		Outcome:    games.Outcome{Summary: "1 winning line(s), best pays x2500"},
	}

	win := base
	win.Payout = decimal.NewFromInt(25000)
	assert.Equal(t, "Slots: 1 winning line(s), best pays x2500. You won 25,000.00!", resultMessage(win))

	loss := base
	loss.Payout = decimal.Zero
	loss.Outcome.Summary = "no winning line"
	assert.Equal(t, "Slots: no winning line. You lost 10.00.", resultMessage(loss))

	refund := base
	refund.Game = games.KindWar
	refund.Payout = decimal.NewFromInt(5)
	refund.Outcome.Summary = "player ♠9 vs dealer ♥9: surrender"
	assert.Equal(t, "War: player ♠9 vs dealer ♥9: surrender. 5.00 returned.", resultMessage(refund))
}
