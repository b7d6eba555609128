package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
)

var (
	ErrRoundAlreadyInProgress = errors.New("round already in progress")
	ErrRoundNotActive         = errors.New("no active round")
	ErrCooldownActive         = errors.New("bonus cooldown active")
	// ErrInvalidMineCount is an ErrInvalidSelection.
	ErrInvalidMineCount = fmt.Errorf("%w: invalid mine count", games.ErrInvalidSelection)
	ErrUnknownGame      = fmt.Errorf("%w: unknown game", games.ErrInvalidSelection)
)

// CooldownError reports how long until the bonus wheel is available again.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: %s remaining", ErrCooldownActive, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldownActive }

// Message renders an error from any settlement operation for the player.
func Message(err error) string {
	var cd *CooldownError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cd):
		return printer.Sprintf("The wheel is cooling down, try again in %s.", formatWait(cd.Remaining))
	case errors.Is(err, ErrCooldownActive):
		return "The wheel is cooling down, try again later."
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "Insufficient balance for this bet."
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "Enter a bet amount greater than zero."
	case errors.Is(err, ErrInvalidMineCount):
		return "That mine count is not allowed on this board."
	case errors.Is(err, games.ErrInvalidSelection):
		return "That selection is not valid for this game."
	case errors.Is(err, ErrRoundAlreadyInProgress):
		return "Please wait for the current round to finish."
	case errors.Is(err, ErrRoundNotActive):
		return "There is no round in progress."
	case errors.Is(err, ledger.ErrPersistence):
		return "Your balance could not be saved; nothing was changed."
	default:
		return "Something went wrong, please try again."
	}
}

func formatWait(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Minute {
		return printer.Sprintf("%d min %d s", int(d/time.Minute), int(d%time.Minute/time.Second))
	}
	return printer.Sprintf("%d s", int(d/time.Second))
}
