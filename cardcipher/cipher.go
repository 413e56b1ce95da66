package cardcipher

import (
	"errors"
	"fmt"
)

// MaxValue is the largest card value the one byte encoding can carry.
const MaxValue = 255

// EncryptedCard is the ciphertext of one card value.
type EncryptedCard []byte

// KeyPair is owned by the peer that generated it. Public is the encoding
// sent to the other peers.
type KeyPair struct {
	Public  []byte
	private any
}

// KeyedCipher encrypts card values under a peer's public key.
type KeyedCipher interface {
	// Name identifies the scheme in configuration and logs.
	Name() string
	// GenerateKey creates a fresh key pair.
	GenerateKey() (*KeyPair, error)
	// Encrypt encrypts value under the encoded public key. The result has
	// the same length for every value.
	Encrypt(public []byte, value int) (EncryptedCard, error)
	// Decrypt recovers the value with the private half of kp.
	// Failures are reported as *DecryptionError.
	Decrypt(kp *KeyPair, card EncryptedCard) (int, error)
	// CiphertextSize returns the length of every ciphertext produced under public.
	CiphertextSize(public []byte) (int, error)
}

// DecryptionError reports a malformed ciphertext or a key mismatch.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return "decryption failed: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// ErrForeignKey is returned when a KeyPair built by another scheme is used.
var ErrForeignKey = errors.New("key pair does not belong to this cipher")

func encodeValue(value int) ([]byte, error) {
	if value < 0 || value > MaxValue {
		return nil, fmt.Errorf("card value %d out of range [0, %d]", value, MaxValue)
	}
	return []byte{byte(value)}, nil
}

func decodeValue(plain []byte) (int, error) {
	if len(plain) != 1 {
		return 0, &DecryptionError{Reason: fmt.Sprintf("plaintext has length %d, expected 1", len(plain))}
	}
	return int(plain[0]), nil
}

// New returns the cipher named by scheme. suite is the kyber suite used by
// "ecies", bits the modulus size used by "rsa-oaep".
func New(scheme, suite string, bits int) (KeyedCipher, error) {
	switch scheme {
	case "ecies", "":
		return NewECIES(suite)
	case "rsa-oaep":
		return NewRSA(bits)
	default:
		return nil, fmt.Errorf("unknown card cipher %q", scheme)
	}
}
