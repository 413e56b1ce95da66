package dealer

import (
	"fmt"
	"math/bits"
)

// DealtSet is a fixed size bit set recording the indices already dealt in
// the current epoch.
type DealtSet struct {
	words []uint64
	size  int
	count int
}

// NewDealtSet returns an empty set able to hold indices in [0, size).
func NewDealtSet(size int) *DealtSet {
	return &DealtSet{
		words: make([]uint64, (size+63)/64),
		size:  size,
	}
}

// Size returns the capacity of the set.
func (s *DealtSet) Size() int { return s.size }

// Count returns how many indices are marked.
func (s *DealtSet) Count() int { return s.count }

// Full reports whether every index is marked.
func (s *DealtSet) Full() bool { return s.count == s.size }

// Has reports whether i is marked.
func (s *DealtSet) Has(i int) bool {
	if i < 0 || i >= s.size {
		return false
	}
	return s.words[i/64]&(1<<(uint(i)%64)) != 0
}

// Mark marks i. Marking an index twice is an error.
func (s *DealtSet) Mark(i int) error {
	if i < 0 || i >= s.size {
		return fmt.Errorf("index %d out of range [0, %d)", i, s.size)
	}
	if s.Has(i) {
		return fmt.Errorf("index %d already dealt", i)
	}
	s.words[i/64] |= 1 << (uint(i) % 64)
	s.count++
	return nil
}

// Reset clears every index.
func (s *DealtSet) Reset() {
	clear(s.words)
	s.count = 0
}

// Indices returns the marked indices in increasing order.
func (s *DealtSet) Indices() []int {
	out := make([]int, 0, s.count)
	for w, word := range s.words {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, w*64+b)
			word &= word - 1
		}
	}
	return out
}
