package games

// Blackjack payout factors, per unit of the original bet.
const (
	BlackjackNaturalFactor = 2.5
	BlackjackWinFactor     = 2
	BlackjackPushFactor    = 1

	BlackjackDecks      = 6
	blackjackTarget     = 21
	blackjackDealerStop = 17
)

// HandValue scores a blackjack hand. Aces count 11 unless that would bust;
// soft reports whether an ace is still counted as 11.
func HandValue(cards []Card) (total int, soft bool) {
	aces := 0
	for _, c := range cards {
		switch v := c.Value(); {
		case v == 14:
			aces++
			total += 11
		case v >= 10:
			total += 10
		default:
			total += v
		}
	}
	for total > blackjackTarget && aces > 0 {
		total -= 10
		aces--
	}
	return total, aces > 0
}

// IsNatural reports a two-card 21.
func IsNatural(cards []Card) bool {
	if len(cards) != 2 {
		return false
	}
	total, _ := HandValue(cards)
	return total == blackjackTarget
}

// IsBust reports a hand over 21.
func IsBust(cards []Card) bool {
	total, _ := HandValue(cards)
	return total > blackjackTarget
}

// DealerShouldHit is true below 17; the dealer stands on all 17s.
func DealerShouldHit(cards []Card) bool {
	total, _ := HandValue(cards)
	return total < blackjackDealerStop
}

// BlackjackFactor compares two finished hands and returns the payout
// factor and a short result label.
func BlackjackFactor(player, dealer []Card) (float64, string) {
	pNat, dNat := IsNatural(player), IsNatural(dealer)
	switch {
	case pNat && dNat:
		return BlackjackPushFactor, "push"
	case pNat:
		return BlackjackNaturalFactor, "blackjack"
	case dNat:
		return 0, "dealer_blackjack"
	}

	pv, _ := HandValue(player)
	dv, _ := HandValue(dealer)
	switch {
	case pv > blackjackTarget:
		return 0, "bust"
	case dv > blackjackTarget:
		return BlackjackWinFactor, "dealer_bust"
	case pv > dv:
		return BlackjackWinFactor, "win"
	case pv == dv:
		return BlackjackPushFactor, "push"
	default:
		return 0, "loss"
	}
}
