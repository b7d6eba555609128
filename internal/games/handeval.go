package games

import (
	"fmt"
	"sort"
)

// HandRank orders five-card poker hands, 0 weakest.
type HandRank int

const (
	HighCard HandRank = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var handRankNames = [...]string{
	"High Card", "One Pair", "Two Pair", "Three of a Kind", "Straight",
	"Flush", "Full House", "Four of a Kind", "Straight Flush", "Royal Flush",
}

func (r HandRank) String() string {
	if r < 0 || int(r) >= len(handRankNames) {
		return fmt.Sprintf("HandRank(%d)", int(r))
	}
	return handRankNames[r]
}

// HandStrength is the comparable value of a five-card hand.
type HandStrength struct {
	Rank     HandRank `json:"rank"`
	Name     string   `json:"name"`
	HighCard int      `json:"high_card"`
	Kickers  []int    `json:"kickers"`
}

// Evaluate ranks exactly five cards. The A-2-3-4-5 wheel counts as a
// five-high straight.
func Evaluate(cards []Card) HandStrength {
	if len(cards) != 5 {
		panic(fmt.Sprintf("games: Evaluate needs 5 cards, got %d", len(cards)))
	}

	values := make([]int, 5)
	counts := make(map[int]int, 5)
	flush := true
	for i, c := range cards {
		values[i] = c.Value()
		counts[values[i]]++
		if c.Suit != cards[0].Suit {
			flush = false
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	straightHigh := 0
	if len(counts) == 5 {
		switch {
		case values[0]-values[4] == 4:
			straightHigh = values[0]
		case values[0] == 14 && values[1] == 5:
			straightHigh = 5
		}
	}

	// groups ordered by count then value, e.g. full house [[K,3],[4,2]]
	type group struct{ value, count int }
	groups := make([]group, 0, len(counts))
	for v, n := range counts {
		groups = append(groups, group{v, n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].value > groups[j].value
	})
	rest := func(from int) []int {
		out := make([]int, 0, len(groups)-from)
		for _, g := range groups[from:] {
			out = append(out, g.value)
		}
		return out
	}

	var hs HandStrength
	switch {
	case flush && straightHigh == 14:
		hs = HandStrength{Rank: RoyalFlush, HighCard: 14, Kickers: []int{}}
	case flush && straightHigh > 0:
		hs = HandStrength{Rank: StraightFlush, HighCard: straightHigh, Kickers: []int{}}
	case groups[0].count == 4:
		hs = HandStrength{Rank: FourOfAKind, HighCard: groups[0].value, Kickers: rest(1)}
	case groups[0].count == 3 && groups[1].count == 2:
		hs = HandStrength{Rank: FullHouse, HighCard: groups[0].value, Kickers: rest(1)}
	case flush:
		hs = HandStrength{Rank: Flush, HighCard: values[0], Kickers: append([]int{}, values[1:]...)}
	case straightHigh > 0:
		hs = HandStrength{Rank: Straight, HighCard: straightHigh, Kickers: []int{}}
	case groups[0].count == 3:
		hs = HandStrength{Rank: ThreeOfAKind, HighCard: groups[0].value, Kickers: rest(1)}
	case groups[0].count == 2 && groups[1].count == 2:
		hs = HandStrength{Rank: TwoPair, HighCard: groups[0].value, Kickers: rest(1)}
	case groups[0].count == 2:
		hs = HandStrength{Rank: OnePair, HighCard: groups[0].value, Kickers: rest(1)}
	default:
		hs = HandStrength{Rank: HighCard, HighCard: values[0], Kickers: append([]int{}, values[1:]...)}
	}
	hs.Name = hs.Rank.String()
	return hs
}

// Compare returns 1 if a beats b, -1 if b beats a and 0 on a tie.
func Compare(a, b HandStrength) int {
	if c := cmpInt(int(a.Rank), int(b.Rank)); c != 0 {
		return c
	}
	if c := cmpInt(a.HighCard, b.HighCard); c != 0 {
		return c
	}
	for i := 0; i < len(a.Kickers) && i < len(b.Kickers); i++ {
		if c := cmpInt(a.Kickers[i], b.Kickers[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a.Kickers), len(b.Kickers))
}

func cmpInt(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

// BestOf returns the strongest five-card hand from two pocket cards and
// up to five community cards, trying every combination.
func BestOf(pocket, community []Card) ([]Card, HandStrength) {
	all := make([]Card, 0, len(pocket)+len(community))
	all = append(all, pocket...)
	all = append(all, community...)
	if len(all) < 5 {
		panic(fmt.Sprintf("games: BestOf needs at least 5 cards, got %d", len(all)))
	}

	var best []Card
	var bestStrength HandStrength
	hand := make([]Card, 5)
	var choose func(start, depth int)
	choose = func(start, depth int) {
		if depth == 5 {
			hs := Evaluate(hand)
			if best == nil || Compare(hs, bestStrength) > 0 {
				best = append([]Card(nil), hand...)
				bestStrength = hs
			}
			return
		}
		for i := start; i <= len(all)-(5-depth); i++ {
			hand[depth] = all[i]
			choose(i+1, depth+1)
		}
	}
	choose(0, 0)
	return best, bestStrength
}
