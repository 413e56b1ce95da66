package commitment

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"go.dedis.ch/kyber/v4/util/random"
	"golang.org/x/crypto/sha3"
)

// DefaultSecretSize is the width in bytes of the secrets produced by NewSecret
// when no size is requested explicitly (256 bits).
const DefaultSecretSize = 32

// MinSecretSize is the smallest secret width NewSecret accepts (128 bits).
const MinSecretSize = 16

// Scheme names the hash function a commitment is computed with.
type Scheme string

const (
	SHA256   Scheme = "sha256"
	SHA3_256 Scheme = "sha3-256"
)

// ErrEmptySecret is returned when committing to, or revealing, an empty value.
var ErrEmptySecret = errors.New("empty secret")

// New returns a fresh hash.Hash for the scheme.
func (s Scheme) New() (hash.Hash, error) {
	switch s {
	case SHA256, "":
		return sha256.New(), nil
	case SHA3_256:
		return sha3.New256(), nil
	default:
		return nil, fmt.Errorf("unknown commitment scheme %q", string(s))
	}
}

func (s Scheme) sum(secret []byte) ([]byte, error) {
	h, err := s.New()
	if err != nil {
		return nil, err
	}
	h.Write(secret)
	return h.Sum(nil), nil
}

// MismatchError reports a disclosed secret that does not hash to the digest
// the peer committed to.
type MismatchError struct {
	Expected []byte
	Actual   []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("commitment mismatch: expected digest %s, revealed value hashes to %s",
		hex.EncodeToString(e.Expected), hex.EncodeToString(e.Actual))
}

// Commitment binds a peer to a secret. The digest never changes after
// creation; revealed is set once the secret has been verified.
type Commitment struct {
	scheme   Scheme
	digest   []byte
	revealed []byte
}

// Commit computes the commitment to secret. The secret itself is not stored.
func Commit(secret []byte, scheme Scheme) (*Commitment, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	digest, err := scheme.sum(secret)
	if err != nil {
		return nil, err
	}
	return &Commitment{scheme: scheme, digest: digest}, nil
}

// FromDigest rebuilds a commitment received from another peer.
func FromDigest(digest []byte, scheme Scheme) (*Commitment, error) {
	h, err := scheme.New()
	if err != nil {
		return nil, err
	}
	if len(digest) != h.Size() {
		return nil, fmt.Errorf("digest has length %d, %s produces %d bytes", len(digest), scheme, h.Size())
	}
	return &Commitment{scheme: scheme, digest: bytes.Clone(digest)}, nil
}

// Digest returns a copy of the committed digest.
func (c *Commitment) Digest() []byte {
	return bytes.Clone(c.digest)
}

// Scheme returns the hash scheme of the commitment.
func (c *Commitment) Scheme() Scheme {
	return c.scheme
}

// Closed reports whether the secret has been revealed and verified.
func (c *Commitment) Closed() bool {
	return c.revealed != nil
}

// Revealed returns the verified secret, or false while the commitment is open.
func (c *Commitment) Revealed() ([]byte, bool) {
	if c.revealed == nil {
		return nil, false
	}
	return bytes.Clone(c.revealed), true
}

// Verify reports whether secret hashes to the committed digest, without
// changing the state of the commitment.
func (c *Commitment) Verify(secret []byte) bool {
	if len(secret) == 0 {
		return false
	}
	actual, err := c.scheme.sum(secret)
	if err != nil {
		return false
	}
	return bytes.Equal(actual, c.digest)
}

// Reveal checks secret against the digest and closes the commitment.
// On a closed commitment the disclosed value must equal the one already
// revealed. A *MismatchError means the committing peer cheated.
func (c *Commitment) Reveal(secret []byte) error {
	if len(secret) == 0 {
		return ErrEmptySecret
	}
	actual, err := c.scheme.sum(secret)
	if err != nil {
		return err
	}
	if !bytes.Equal(actual, c.digest) {
		return &MismatchError{Expected: c.Digest(), Actual: actual}
	}
	if c.revealed != nil && !bytes.Equal(c.revealed, secret) {
		return &MismatchError{Expected: c.Digest(), Actual: actual}
	}
	c.revealed = bytes.Clone(secret)
	return nil
}

// NewSecret draws a uniformly random secret of size bytes.
func NewSecret(size int) ([]byte, error) {
	if size < MinSecretSize {
		return nil, fmt.Errorf("secret size %d is below the minimum of %d bytes", size, MinSecretSize)
	}
	return random.Bits(uint(size)*8, false, random.New()), nil
}
