package settlement

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MJE43/casino-settle-go/internal/games"
)

var (
	printer = message.NewPrinter(language.English)
	title   = cases.Title(language.English)
)

// formatMoney groups thousands and always shows cents: 1,234.50.
func formatMoney(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.InexactFloat64())
}

func gameTitle(kind games.Kind) string {
	return title.String(string(kind))
}

func resultMessage(res Result) string {
	msg := outcomeMessage(res)
	if res.PayoutPending {
		msg += printer.Sprintf(" Your payout of %s will be credited shortly.", formatMoney(res.Payout))
	}
	return msg
}

func outcomeMessage(res Result) string {
	name := gameTitle(res.Game)
	switch {
	case res.Bet.IsZero() && res.Payout.IsPositive():
		return printer.Sprintf("%s bonus: %s credited.", name, formatMoney(res.Payout))
	case res.Payout.GreaterThan(res.Bet.Add(res.ExtraStake)):
		return printer.Sprintf("%s: %s. You won %s!", name, res.Outcome.Summary, formatMoney(res.Payout))
	case res.Payout.IsPositive():
		return printer.Sprintf("%s: %s. %s returned.", name, res.Outcome.Summary, formatMoney(res.Payout))
	default:
		return printer.Sprintf("%s: %s. You lost %s.", name, res.Outcome.Summary, formatMoney(res.Bet.Add(res.ExtraStake)))
	}
}
