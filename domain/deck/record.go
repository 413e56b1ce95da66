package deck

import (
	"bytes"
	"fmt"

	"github.com/luca-patrignani/fairdeal/cardcipher"
	"github.com/luca-patrignani/fairdeal/mask"
)

// Disclosure is what a stage reveals about one position during a reveal:
// the pad of its layer and the position the card came from in the deck the
// stage received.
type Disclosure struct {
	Rank     int    `json:"rank"`
	Layer    int    `json:"layer"`
	Position int    `json:"position"`
	Source   int    `json:"source"`
	Pad      []byte `json:"pad"`
}

// Record is the private trace of one stage. Source[out] is the input
// position moved to output position out; Pads[out] and Output[out] are
// the pad used there and the masked card emitted. Values and Ciphertexts
// are kept by the opening stage only.
type Record struct {
	Rank        int
	Layer       int
	Source      []int
	Pads        [][]byte
	Output      []mask.MaskedCard
	Values      []int
	Ciphertexts []cardcipher.EncryptedCard
}

// Disclose returns the disclosure for output position.
func (r *Record) Disclose(position int) (Disclosure, error) {
	if position < 0 || position >= len(r.Source) {
		return Disclosure{}, fmt.Errorf("position %d out of range [0, %d)", position, len(r.Source))
	}
	return Disclosure{
		Rank:     r.Rank,
		Layer:    r.Layer,
		Position: position,
		Source:   r.Source[position],
		Pad:      bytes.Clone(r.Pads[position]),
	}, nil
}

// Trace checks that disclosures, outermost layer first, form a chain that
// starts at position of a deck shuffled by layers stages.
func Trace(position, layers int, disclosures []Disclosure) error {
	if len(disclosures) != layers {
		return fmt.Errorf("%d disclosures for %d layers", len(disclosures), layers)
	}
	next := position
	for i, d := range disclosures {
		if want := layers - 1 - i; d.Layer != want {
			return fmt.Errorf("disclosure %d is for layer %d, expected %d", i, d.Layer, want)
		}
		if d.Position != next {
			return fmt.Errorf("layer %d disclosed position %d, expected %d", d.Layer, d.Position, next)
		}
		next = d.Source
	}
	return nil
}

// Verify cross-checks a reveal of position against this stage's record.
// The sealed deck, the disclosures (outermost first), the recovered
// ciphertext and the claimed value must all agree with what this stage
// produced.
func (r *Record) Verify(d *Deck, position int, disclosures []Disclosure, ct cardcipher.EncryptedCard, claim int) error {
	if err := Trace(position, len(d.Order), disclosures); err != nil {
		return err
	}
	idx := len(disclosures) - 1 - r.Layer
	if idx < 0 || idx >= len(disclosures) {
		return fmt.Errorf("no disclosure for layer %d", r.Layer)
	}
	own := disclosures[idx]
	if own.Rank != r.Rank {
		return fmt.Errorf("layer %d disclosed by peer %d, applied by peer %d", r.Layer, own.Rank, r.Rank)
	}
	if own.Position < 0 || own.Position >= len(r.Source) {
		return fmt.Errorf("layer %d disclosed position %d out of range", r.Layer, own.Position)
	}
	if own.Source != r.Source[own.Position] || !bytes.Equal(own.Pad, r.Pads[own.Position]) {
		return fmt.Errorf("disclosure for layer %d does not match the applied permutation and pad", r.Layer)
	}

	card, err := d.Card(position)
	if err != nil {
		return err
	}
	for _, disc := range disclosures[:idx] {
		if card, err = card.Unmask(disc.Pad); err != nil {
			return err
		}
	}
	if !card.Equal(r.Output[own.Position]) {
		return fmt.Errorf("card at position %d differs from the one emitted by layer %d at position %d", position, r.Layer, own.Position)
	}

	if r.Layer == 0 {
		if !bytes.Equal(ct, r.Ciphertexts[own.Position]) {
			return fmt.Errorf("recovered ciphertext differs from the one encrypted at position %d", own.Position)
		}
		if claim != r.Values[own.Position] {
			return fmt.Errorf("claimed value %d, encrypted value was %d", claim, r.Values[own.Position])
		}
	}
	return nil
}
