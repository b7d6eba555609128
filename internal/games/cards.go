package games

import (
	"fmt"

	"github.com/MJE43/casino-settle-go/internal/engine"
)

// Card represents a playing card with rank and suit.
type Card struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// String returns a human-readable card representation like "♦2" or "♠A".
func (c Card) String() string {
	return c.Suit + c.Rank
}

var cardSuits = []string{"♦", "♥", "♠", "♣"}

// Ranks in order: 2-10, J, Q, K, A
var cardRanks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

var rankValues = func() map[string]int {
	m := make(map[string]int, len(cardRanks))
	for i, r := range cardRanks {
		m[r] = i + 2
	}
	return m
}()

// Value is the ace-high rank value, 2..14.
func (c Card) Value() int {
	return rankValues[c.Rank]
}

// NewCard builds a card from an ace-high value and suit index.
func NewCard(value int, suit int) Card {
	return Card{Rank: cardRanks[value-2], Suit: cardSuits[suit%len(cardSuits)]}
}

// ParseCard reads the String form back, e.g. "♠A" or "♥10".
func ParseCard(s string) (Card, error) {
	for _, suit := range cardSuits {
		if len(s) > len(suit) && s[:len(suit)] == suit {
			rank := s[len(suit):]
			if _, ok := rankValues[rank]; ok {
				return Card{Rank: rank, Suit: suit}, nil
			}
		}
	}
	return Card{}, fmt.Errorf("unrecognized card %q", s)
}

// Shoe is a finite, shuffled stack of one or more 52-card decks.
type Shoe struct {
	cards []Card
	next  int
}

// NewShoe builds decks in rank-major order and shuffles them with
// draw-driven Fisher-Yates selection, consuming len-1 draws.
func NewShoe(decks int, src engine.Source) *Shoe {
	if decks < 1 {
		decks = 1
	}
	pool := make([]Card, 0, decks*52)
	for d := 0; d < decks; d++ {
		for _, rank := range cardRanks {
			for _, suit := range cardSuits {
				pool = append(pool, Card{Rank: rank, Suit: suit})
			}
		}
	}
	for i := len(pool) - 1; i > 0; i-- {
		j := engine.UniformIndex(src.Draw(), i+1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return &Shoe{cards: pool}
}

// Draw deals the top card. An exhausted shoe is a programming error for
// every game here, since no round needs more than a fraction of a deck.
func (s *Shoe) Draw() Card {
	if s.next >= len(s.cards) {
		panic("games: shoe exhausted")
	}
	c := s.cards[s.next]
	s.next++
	return c
}

// Burn discards n cards and returns them.
func (s *Shoe) Burn(n int) []Card {
	out := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.Draw())
	}
	return out
}

// Remaining returns the number of undealt cards.
func (s *Shoe) Remaining() int {
	return len(s.cards) - s.next
}

// ShoeFromCards builds an unshuffled shoe dealing cards in the given order.
func ShoeFromCards(cards []Card) *Shoe {
	cp := make([]Card, len(cards))
	copy(cp, cards)
	return &Shoe{cards: cp}
}
