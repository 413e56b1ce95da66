package dealer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luca-patrignani/fairdeal/commitment"
)

// ErrNoSecrets is returned by Deal when called without secrets.
var ErrNoSecrets = errors.New("no revealed secrets to deal from")

// Deal is the outcome of one index agreement.
type Deal struct {
	Index  int `json:"index"`
	Epoch  int `json:"epoch"`
	Step   int `json:"step"`
	Probes int `json:"probes"`
}

// Dealer assigns card indices in [0, Size) from revealed secrets.
// A Dealer belongs to a single peer; every peer runs its own and, fed with
// the same secrets in the same order, they all agree on the result.
type Dealer struct {
	size  int
	steps []int
	dealt *DealtSet
	epoch int
}

// New creates a dealer for a deck of size cards. When no steps are given the
// table from CoprimeSteps is used.
func New(size int, steps ...int) (*Dealer, error) {
	if size < 2 {
		return nil, fmt.Errorf("deck size must be at least 2, got %d", size)
	}
	if len(steps) == 0 {
		var err error
		steps, err = CoprimeSteps(size)
		if err != nil {
			return nil, err
		}
	}
	if err := ValidateSteps(size, steps); err != nil {
		return nil, err
	}
	return &Dealer{
		size:  size,
		steps: append([]int(nil), steps...),
		dealt: NewDealtSet(size),
	}, nil
}

// Size returns the deck size.
func (d *Dealer) Size() int { return d.size }

// Steps returns a copy of the step table.
func (d *Dealer) Steps() []int { return append([]int(nil), d.steps...) }

// Epoch returns the number of times the deck has been exhausted and reset.
func (d *Dealer) Epoch() int { return d.epoch }

// Exhausted reports whether every index has been dealt in the current epoch.
// The next call to Deal starts a new epoch.
func (d *Dealer) Exhausted() bool { return d.dealt.Full() }

// Dealt returns the indices dealt in the current epoch.
func (d *Dealer) Dealt() []int { return d.dealt.Indices() }

// Has reports whether index was dealt in the current epoch.
func (d *Dealer) Has(index int) bool { return d.dealt.Has(index) }

// Mark records index as dealt without deriving it from secrets, for cards
// chosen by position or burned by an aborted reveal.
func (d *Dealer) Mark(index int) error { return d.dealt.Mark(index) }

// Reset discards the current epoch and starts a new one.
func (d *Dealer) Reset() {
	d.dealt.Reset()
	d.epoch++
}

// Combine sums the secrets interpreted as unsigned big-endian integers.
func Combine(secrets ...[]byte) (*big.Int, error) {
	if len(secrets) == 0 {
		return nil, ErrNoSecrets
	}
	sum := new(big.Int)
	for i, s := range secrets {
		if len(s) == 0 {
			return nil, fmt.Errorf("secret %d is empty", i)
		}
		sum.Add(sum, new(big.Int).SetBytes(s))
	}
	return sum, nil
}

// Deal derives the next index from the revealed secrets of every peer.
func (d *Dealer) Deal(secrets ...[]byte) (Deal, error) {
	combined, err := Combine(secrets...)
	if err != nil {
		return Deal{}, err
	}
	if d.dealt.Full() {
		d.Reset()
	}
	index := int(new(big.Int).Mod(combined, big.NewInt(int64(d.size))).Int64())
	selector := int(new(big.Int).Mod(combined, big.NewInt(int64(len(d.steps)))).Int64())
	step := d.steps[selector]

	probes := 0
	for d.dealt.Has(index) {
		index = (index + step) % d.size
		probes++
		if probes >= d.size {
			return Deal{}, fmt.Errorf("probe with step %d did not find a free index", step)
		}
	}
	if err := d.dealt.Mark(index); err != nil {
		return Deal{}, err
	}
	return Deal{Index: index, Epoch: d.epoch, Step: step, Probes: probes}, nil
}

// DealCommitted deals from commitments that have all been revealed.
func (d *Dealer) DealCommitted(commitments ...*commitment.Commitment) (Deal, error) {
	secrets := make([][]byte, len(commitments))
	for i, c := range commitments {
		s, ok := c.Revealed()
		if !ok {
			return Deal{}, fmt.Errorf("commitment %d has not been revealed", i)
		}
		secrets[i] = s
	}
	return d.Deal(secrets...)
}
