// Package cards implements the card-draw attack mechanic: the player draws a hand,
// the best five-card rank in the draw is evaluated, and the rank maps to a fixed
// base-damage table.
package cards

import (
	"fmt"

	"github.com/emberhold/encounter/internal/game/dice"
)

// Suit identifies one of the four card suits.
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// Card is a single playing card. Rank runs 2..14 where 11=J, 12=Q, 13=K, 14=A.
type Card struct {
	Rank int
	Suit Suit
}

// DeckSize is the number of cards in a standard deck.
const DeckSize = 52

// String returns a short human-readable card label, e.g. "A♠" or "10♥".
func (c Card) String() string {
	var rank string
	switch c.Rank {
	case 11:
		rank = "J"
	case 12:
		rank = "Q"
	case 13:
		rank = "K"
	case 14:
		rank = "A"
	default:
		rank = fmt.Sprintf("%d", c.Rank)
	}
	suits := [...]string{"♣", "♦", "♥", "♠"}
	return rank + suits[c.Suit]
}

// newDeck returns all 52 cards in a fixed order.
func newDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for s := Clubs; s <= Spades; s++ {
		for r := 2; r <= 14; r++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// Draw deals n distinct cards from a fresh deck using src for shuffling.
// Uses a partial Fisher-Yates so only n swaps are performed.
//
// Precondition: 1 <= n <= DeckSize; src must be non-nil.
// Postcondition: Returns exactly n distinct cards.
func Draw(n int, src dice.Source) ([]Card, error) {
	if n < 1 || n > DeckSize {
		return nil, fmt.Errorf("cards: draw size must be 1-%d, got %d", DeckSize, n)
	}
	deck := newDeck()
	for i := 0; i < n; i++ {
		j := i + src.Intn(len(deck)-i)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck[:n], nil
}
