package deck

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/luca-patrignani/fairdeal/mask"
)

var (
	// ErrSealed is returned when modifying a deck whose construction finished.
	ErrSealed = errors.New("deck is sealed")
	// ErrNotSealed is returned when reading cards of a deck still being shuffled.
	ErrNotSealed = errors.New("deck construction has not finished")
)

// Deck is the rappresentation of the shared deck. Cards holds the masked
// cards after the last completed stage.
type Deck struct {
	Size      int
	Recipient []byte
	Order     []int
	cards     []mask.MaskedCard
	turn      int
	sealed    bool
}

// New creates an empty deck of size cards to be encrypted under recipient and
// shuffled by the peers in order.
func New(size int, recipient []byte, order []int) (*Deck, error) {
	if size < 2 {
		return nil, fmt.Errorf("deck size must be at least 2, got %d", size)
	}
	if len(recipient) == 0 {
		return nil, errors.New("missing recipient public key")
	}
	if len(order) == 0 {
		return nil, errors.New("no shuffling peers")
	}
	seen := make(map[int]bool, len(order))
	for _, r := range order {
		if seen[r] {
			return nil, fmt.Errorf("peer %d appears twice in the shuffle order", r)
		}
		seen[r] = true
	}
	return &Deck{
		Size:      size,
		Recipient: bytes.Clone(recipient),
		Order:     append([]int(nil), order...),
	}, nil
}

// Turn returns the number of stages already applied.
func (d *Deck) Turn() int { return d.turn }

// Owner returns the rank of the peer whose stage comes next.
func (d *Deck) Owner() (int, bool) {
	if d.sealed || d.turn >= len(d.Order) {
		return 0, false
	}
	return d.Order[d.turn], true
}

// Sealed reports whether construction has finished.
func (d *Deck) Sealed() bool { return d.sealed }

// Seal freezes the deck once every peer in the order has shuffled it.
func (d *Deck) Seal() error {
	if d.sealed {
		return ErrSealed
	}
	if d.turn != len(d.Order) {
		return fmt.Errorf("only %d of %d stages applied", d.turn, len(d.Order))
	}
	d.sealed = true
	return nil
}

// Card returns a copy of the card at position of a sealed deck.
func (d *Deck) Card(position int) (mask.MaskedCard, error) {
	if !d.sealed {
		return mask.MaskedCard{}, ErrNotSealed
	}
	if position < 0 || position >= d.Size {
		return mask.MaskedCard{}, fmt.Errorf("position %d out of range [0, %d)", position, d.Size)
	}
	return d.cards[position].Clone(), nil
}

// Cards returns a copy of the current cards.
func (d *Deck) Cards() []mask.MaskedCard {
	out := make([]mask.MaskedCard, len(d.cards))
	for i, c := range d.cards {
		out[i] = c.Clone()
	}
	return out
}

// Accept adopts the cards produced by the stage of rank, as received from
// that peer. The cards must carry exactly one more mask layer than before
// and share a single length.
func (d *Deck) Accept(rank int, cards []mask.MaskedCard) error {
	if d.sealed {
		return ErrSealed
	}
	owner, ok := d.Owner()
	if !ok {
		return errors.New("every stage has already been applied")
	}
	if owner != rank {
		return fmt.Errorf("peer %d shuffled out of turn, expected peer %d", rank, owner)
	}
	if len(cards) != d.Size {
		return fmt.Errorf("received %d cards, deck has %d", len(cards), d.Size)
	}
	width := len(cards[0].Ciphertext)
	for i, c := range cards {
		if c.Layers() != d.turn+1 {
			return fmt.Errorf("card %d has %d mask layers, expected %d", i, c.Layers(), d.turn+1)
		}
		if len(c.Ciphertext) != width || width == 0 {
			return fmt.Errorf("card %d has length %d, expected %d", i, len(c.Ciphertext), width)
		}
		if err := c.Check(); err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
	}
	next := make([]mask.MaskedCard, len(cards))
	for i, c := range cards {
		next[i] = c.Clone()
	}
	d.cards = next
	d.turn++
	return nil
}
