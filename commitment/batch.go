package commitment

import (
	"errors"
	"fmt"
)

// ErrBatchExhausted is returned by Batch.Next once every secret has been used.
var ErrBatchExhausted = errors.New("every committed secret has been revealed")

// Batch holds secrets a peer committed to up front, one per future deal.
// Digests are shared at the beginning of a deck epoch and secrets are
// disclosed one at a time, in order.
type Batch struct {
	secrets     [][]byte
	commitments []*Commitment
	next        int
}

// NewBatch draws n secrets of the given size and commits to each of them.
func NewBatch(n, size int, scheme Scheme) (*Batch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", n)
	}
	b := &Batch{
		secrets:     make([][]byte, n),
		commitments: make([]*Commitment, n),
	}
	for i := range n {
		secret, err := NewSecret(size)
		if err != nil {
			return nil, err
		}
		c, err := Commit(secret, scheme)
		if err != nil {
			return nil, err
		}
		b.secrets[i] = secret
		b.commitments[i] = c
	}
	return b, nil
}

// Digests returns the digests in the order the secrets will be revealed.
func (b *Batch) Digests() [][]byte {
	digests := make([][]byte, len(b.commitments))
	for i, c := range b.commitments {
		digests[i] = c.Digest()
	}
	return digests
}

// Len returns the number of secrets in the batch.
func (b *Batch) Len() int {
	return len(b.secrets)
}

// Remaining returns how many secrets have not been revealed yet.
func (b *Batch) Remaining() int {
	return len(b.secrets) - b.next
}

// Next returns the position and value of the next secret to disclose.
func (b *Batch) Next() (int, []byte, error) {
	if b.next >= len(b.secrets) {
		return 0, nil, ErrBatchExhausted
	}
	i := b.next
	b.next++
	secret := b.secrets[i]
	if err := b.commitments[i].Reveal(secret); err != nil {
		return 0, nil, err
	}
	return i, secret, nil
}
