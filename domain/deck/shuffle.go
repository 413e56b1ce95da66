package deck

import (
	"crypto/cipher"
	"fmt"
	"math/big"

	"go.dedis.ch/kyber/v4/util/random"

	"github.com/luca-patrignani/fairdeal/cardcipher"
	"github.com/luca-patrignani/fairdeal/mask"
)

// Stage is one peer's contribution to the deck.
type Stage struct {
	Rank   int
	Cipher cardcipher.KeyedCipher
	// Random drives the permutation; a fresh kyber stream is used when nil.
	Random cipher.Stream
}

// permutation returns a uniformly random permutation of [0, n) drawn with a
// Fisher-Yates shuffle.
func permutation(n int, stream cipher.Stream) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := int(random.Int(big.NewInt(int64(i+1)), stream).Int64())
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Apply runs the stage on d, which must be waiting for this peer's turn,
// and returns the private record of what was applied.
func (s Stage) Apply(d *Deck) (*Record, error) {
	owner, ok := d.Owner()
	if !ok {
		return nil, ErrSealed
	}
	if owner != s.Rank {
		return nil, fmt.Errorf("peer %d shuffled out of turn, expected peer %d", s.Rank, owner)
	}
	stream := s.Random
	if stream == nil {
		stream = random.New()
	}
	perm := permutation(d.Size, stream)
	rec := &Record{
		Rank:   s.Rank,
		Layer:  d.turn,
		Source: perm,
		Pads:   make([][]byte, d.Size),
		Output: make([]mask.MaskedCard, d.Size),
	}
	if d.turn == 0 {
		if s.Cipher == nil {
			return nil, fmt.Errorf("opening stage needs a card cipher")
		}
		rec.Values = make([]int, d.Size)
		rec.Ciphertexts = make([]cardcipher.EncryptedCard, d.Size)
		for out, in := range perm {
			ct, err := s.Cipher.Encrypt(d.Recipient, in)
			if err != nil {
				return nil, fmt.Errorf("encrypt card %d: %w", in, err)
			}
			card, pad, err := mask.Seal(ct)
			if err != nil {
				return nil, err
			}
			rec.Values[out] = in
			rec.Ciphertexts[out] = ct
			rec.Pads[out] = pad
			rec.Output[out] = card
		}
	} else {
		for out, in := range perm {
			card, pad, err := d.cards[in].MaskRandom()
			if err != nil {
				return nil, err
			}
			rec.Pads[out] = pad
			rec.Output[out] = card
		}
	}
	if err := d.Accept(s.Rank, rec.Output); err != nil {
		return nil, err
	}
	return rec, nil
}
