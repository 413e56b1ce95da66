package cardcipher

import (
	"crypto/sha256"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/encrypt/ecies"
	"go.dedis.ch/kyber/v4/suites"
	"go.dedis.ch/kyber/v4/util/key"
)

// gcmOverhead is the authentication tag appended by the AES-GCM layer of ECIES.
const gcmOverhead = 16

// ECIES encrypts card values with kyber's ECIES on a prime order group.
type ECIES struct {
	suite suites.Suite
}

// NewECIES returns an ECIES cipher on the named kyber suite ("Ed25519" if empty).
func NewECIES(suite string) (*ECIES, error) {
	if suite == "" {
		suite = "Ed25519"
	}
	s, err := suites.Find(suite)
	if err != nil {
		return nil, fmt.Errorf("kyber suite %q: %w", suite, err)
	}
	return &ECIES{suite: s}, nil
}

func (c *ECIES) Name() string { return "ecies-" + c.suite.String() }

func (c *ECIES) GenerateKey() (*KeyPair, error) {
	pair := key.NewKeyPair(c.suite)
	public, err := pair.Public.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: public, private: pair.Private}, nil
}

func (c *ECIES) point(public []byte) (kyber.Point, error) {
	p := c.suite.Point()
	if err := p.UnmarshalBinary(public); err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return p, nil
}

func (c *ECIES) Encrypt(public []byte, value int) (EncryptedCard, error) {
	plain, err := encodeValue(value)
	if err != nil {
		return nil, err
	}
	p, err := c.point(public)
	if err != nil {
		return nil, err
	}
	ct, err := ecies.Encrypt(c.suite, p, plain, sha256.New)
	if err != nil {
		return nil, err
	}
	return EncryptedCard(ct), nil
}

func (c *ECIES) Decrypt(kp *KeyPair, card EncryptedCard) (int, error) {
	private, ok := kp.private.(kyber.Scalar)
	if !ok {
		return 0, &DecryptionError{Reason: "key mismatch", Err: ErrForeignKey}
	}
	size := c.suite.PointLen() + 1 + gcmOverhead
	if len(card) != size {
		return 0, &DecryptionError{Reason: fmt.Sprintf("ciphertext has length %d, expected %d", len(card), size)}
	}
	plain, err := ecies.Decrypt(c.suite, private, card, sha256.New)
	if err != nil {
		return 0, &DecryptionError{Reason: "ecies", Err: err}
	}
	return decodeValue(plain)
}

func (c *ECIES) CiphertextSize(public []byte) (int, error) {
	if _, err := c.point(public); err != nil {
		return 0, err
	}
	return c.suite.PointLen() + 1 + gcmOverhead, nil
}
