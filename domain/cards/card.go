package cards

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// Card suit constants (0-3)
const (
	Club    = 0 // ♣ (black)
	Diamond = 1 // ♦ (red)
	Heart   = 2 // ♥ (red)
	Spade   = 3 // ♠ (black)
)

// Card rank constants for face cards and ace
const (
	Ace   = 1
	Jack  = 11
	Queen = 12
	King  = 13
)

// DeckSize is the number of distinct playing cards.
const DeckSize = 52

// FaceDown is the display of a card not revealed yet.
const FaceDown = "▓"

var suitSymbols = [4]string{"♣", "♦", "♥", "♠"}

// Card is a playing card. The zero Card is face down.
type Card struct {
	suit uint8
	rank uint8
}

// FromValue returns the card encoded by a deck value in [0, 52).
func FromValue(value int) (Card, error) {
	if value < 0 || value >= DeckSize {
		return Card{}, fmt.Errorf("card value %d out of range [0, %d)", value, DeckSize)
	}
	return Card{suit: uint8(value / 13), rank: uint8(value%13) + 1}, nil
}

// Value returns the deck value of the card, -1 when face down.
func (c Card) Value() int {
	if c.rank == 0 {
		return -1
	}
	return int(c.suit)*13 + int(c.rank) - 1
}

// Suit returns 0-3: clubs, diamonds, hearts, spades.
func (c Card) Suit() uint8 { return c.suit }

// Rank returns 1-13: ace through king, 0 when face down.
func (c Card) Rank() uint8 { return c.rank }

func (c Card) rankString() string {
	switch c.rank {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		return fmt.Sprintf("%d", c.rank)
	}
}

// Plain returns the card without colors, like "A♥".
func (c Card) Plain() string {
	if c.rank == 0 {
		return FaceDown
	}
	return c.rankString() + suitSymbols[c.suit]
}

// String returns the card with a red or black suit.
func (c Card) String() string {
	if c.rank == 0 {
		return FaceDown
	}
	suit := suitSymbols[c.suit]
	if c.suit == Diamond || c.suit == Heart {
		suit = pterm.LightRed(suit)
	} else {
		suit = pterm.Gray(suit)
	}
	return c.rankString() + suit
}

// Describe renders a deck value as a card when it is one, as a number otherwise.
func Describe(value int) string {
	c, err := FromValue(value)
	if err != nil {
		return fmt.Sprintf("#%d", value)
	}
	return c.String()
}

// Board renders values as a row of cards, with FaceDown for every missing
// card up to size.
func Board(values []int, size int) string {
	parts := make([]string, 0, max(size, len(values)))
	for _, v := range values {
		parts = append(parts, Describe(v))
	}
	for len(parts) < size {
		parts = append(parts, FaceDown)
	}
	return strings.Join(parts, " ")
}
