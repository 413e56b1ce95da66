package cardcipher

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// MinRSABits is the smallest modulus accepted for card encryption.
const MinRSABits = 2048

var oaepLabel = []byte("fairdeal card")

// RSA encrypts card values with RSA-OAEP over SHA-256.
type RSA struct {
	bits int
}

// NewRSA returns an RSA-OAEP cipher generating keys of the given size.
func NewRSA(bits int) (*RSA, error) {
	if bits == 0 {
		bits = MinRSABits
	}
	if bits < MinRSABits {
		return nil, fmt.Errorf("rsa modulus of %d bits is below the minimum of %d", bits, MinRSABits)
	}
	return &RSA{bits: bits}, nil
}

func (c *RSA) Name() string { return fmt.Sprintf("rsa-oaep-%d", c.bits) }

func (c *RSA) GenerateKey() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, c.bits)
	if err != nil {
		return nil, err
	}
	public, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: public, private: priv}, nil
}

func parseRSAPublic(public []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(public)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is a %T, not an RSA key", key)
	}
	if pub.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("rsa public key of %d bits is below the minimum of %d", pub.N.BitLen(), MinRSABits)
	}
	return pub, nil
}

func (c *RSA) Encrypt(public []byte, value int) (EncryptedCard, error) {
	plain, err := encodeValue(value)
	if err != nil {
		return nil, err
	}
	pub, err := parseRSAPublic(public)
	if err != nil {
		return nil, err
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plain, oaepLabel)
	if err != nil {
		return nil, err
	}
	return EncryptedCard(ct), nil
}

func (c *RSA) Decrypt(kp *KeyPair, card EncryptedCard) (int, error) {
	priv, ok := kp.private.(*rsa.PrivateKey)
	if !ok {
		return 0, &DecryptionError{Reason: "key mismatch", Err: ErrForeignKey}
	}
	if len(card) != priv.Size() {
		return 0, &DecryptionError{Reason: fmt.Sprintf("ciphertext has length %d, expected %d", len(card), priv.Size())}
	}
	plain, err := rsa.DecryptOAEP(sha256.New(), nil, priv, card, oaepLabel)
	if err != nil {
		return 0, &DecryptionError{Reason: "oaep padding", Err: err}
	}
	return decodeValue(plain)
}

func (c *RSA) CiphertextSize(public []byte) (int, error) {
	pub, err := parseRSAPublic(public)
	if err != nil {
		return 0, err
	}
	return pub.Size(), nil
}
