package mask

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"go.dedis.ch/kyber/v4/util/random"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"github.com/luca-patrignani/fairdeal/cardcipher"
)

var (
	tagInfo    = []byte("fairdeal/mask/tag/v1")
	streamInfo = []byte("fairdeal/mask/inner/v1")
)

// TagSize is the length of a layer tag.
const TagSize = 32

// ErrLayersRemaining is returned when asking for the ciphertext of a card
// that still carries mask layers.
var ErrLayersRemaining = errors.New("card is still masked")

// IntegrityError reports a pad or masked value that does not match the tag
// recorded when the layer was applied.
type IntegrityError struct {
	Layer    int
	Expected []byte
	Actual   []byte
	Reason   string
}

func (e *IntegrityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("mask layer %d: integrity check failed: %s", e.Layer, e.Reason)
	}
	return fmt.Sprintf("mask layer %d: integrity check failed: expected tag %s, computed %s",
		e.Layer, hex.EncodeToString(e.Expected), hex.EncodeToString(e.Actual))
}

// MaskedCard is an encrypted card hidden behind Depth mask layers. Only the
// tag of the outermost layer is in clear. The tags of the inner layers,
// outermost first, are in Inner, encrypted under a keystream of the
// outermost pad, so a card carries nothing a former holder could recognize.
type MaskedCard struct {
	Ciphertext []byte `json:"ciphertext"`
	Tag        []byte `json:"tag,omitempty"`
	Inner      []byte `json:"inner,omitempty"`
	Depth      int    `json:"depth"`
}

// Layers returns the number of mask layers still applied.
func (m MaskedCard) Layers() int { return m.Depth }

// Check reports whether the tag fields are consistent with Depth.
func (m MaskedCard) Check() error {
	switch {
	case m.Depth < 0:
		return fmt.Errorf("negative depth %d", m.Depth)
	case m.Depth == 0 && (len(m.Tag) != 0 || len(m.Inner) != 0):
		return errors.New("unmasked card carries tags")
	case m.Depth > 0 && len(m.Tag) != TagSize:
		return fmt.Errorf("tag has length %d, expected %d", len(m.Tag), TagSize)
	case m.Depth > 0 && len(m.Inner) != TagSize*(m.Depth-1):
		return fmt.Errorf("inner tags have length %d, expected %d", len(m.Inner), TagSize*(m.Depth-1))
	}
	return nil
}

// Clone returns a deep copy of the card.
func (m MaskedCard) Clone() MaskedCard {
	return MaskedCard{
		Ciphertext: bytes.Clone(m.Ciphertext),
		Tag:        bytes.Clone(m.Tag),
		Inner:      bytes.Clone(m.Inner),
		Depth:      m.Depth,
	}
}

// Equal reports whether both cards carry the same bytes and tags.
func (m MaskedCard) Equal(o MaskedCard) bool {
	return m.Depth == o.Depth &&
		bytes.Equal(m.Ciphertext, o.Ciphertext) &&
		bytes.Equal(m.Tag, o.Tag) &&
		bytes.Equal(m.Inner, o.Inner)
}

// NewPad draws a uniformly random pad of size bytes.
func NewPad(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pad size must be positive, got %d", size)
	}
	return random.Bits(uint(size)*8, false, random.New()), nil
}

func derive(pad, info []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, pad, nil, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tag computes the tag binding pad, at the given layer, to the bytes it
// masks and to the tags of the layers below.
func Tag(pad []byte, layer int, input, inner []byte) ([]byte, error) {
	key, err := derive(pad, tagInfo, 32)
	if err != nil {
		return nil, err
	}
	mac, err := blake2b.New256(key)
	if err != nil {
		return nil, err
	}
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(layer))
	mac.Write(l[:])
	binary.BigEndian.PutUint32(l[:], uint32(len(input)))
	mac.Write(l[:])
	mac.Write(input)
	mac.Write(inner)
	return mac.Sum(nil), nil
}

// hideInner encrypts or decrypts the inner tags with the keystream of pad.
func hideInner(pad, inner []byte) ([]byte, error) {
	if len(inner) == 0 {
		return nil, nil
	}
	stream, err := derive(pad, streamInfo, len(inner))
	if err != nil {
		return nil, err
	}
	return xor(inner, stream), nil
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Seal masks an encrypted card with a fresh pad and returns the pad.
func Seal(ct cardcipher.EncryptedCard) (MaskedCard, []byte, error) {
	return MaskedCard{Ciphertext: bytes.Clone(ct)}.MaskRandom()
}

// MaskRandom adds a layer with a fresh pad and returns the pad.
func (m MaskedCard) MaskRandom() (MaskedCard, []byte, error) {
	pad, err := NewPad(len(m.Ciphertext))
	if err != nil {
		return MaskedCard{}, nil, err
	}
	out, err := m.Mask(pad)
	if err != nil {
		return MaskedCard{}, nil, err
	}
	return out, pad, nil
}

// Mask adds a layer using pad, which must be as long as the card bytes.
// The tags already on the card move under the new layer.
func (m MaskedCard) Mask(pad []byte) (MaskedCard, error) {
	if len(pad) != len(m.Ciphertext) {
		return MaskedCard{}, fmt.Errorf("pad has length %d, card has %d bytes", len(pad), len(m.Ciphertext))
	}
	if err := m.Check(); err != nil {
		return MaskedCard{}, err
	}
	var inner []byte
	if m.Depth > 0 {
		inner = append(bytes.Clone(m.Tag), m.Inner...)
	}
	tag, err := Tag(pad, m.Depth, m.Ciphertext, inner)
	if err != nil {
		return MaskedCard{}, err
	}
	hidden, err := hideInner(pad, inner)
	if err != nil {
		return MaskedCard{}, err
	}
	return MaskedCard{
		Ciphertext: xor(m.Ciphertext, pad),
		Tag:        tag,
		Inner:      hidden,
		Depth:      m.Depth + 1,
	}, nil
}

// Unmask removes the outermost layer with its disclosed pad and verifies
// the layer tag over the recovered bytes and inner tags.
func (m MaskedCard) Unmask(pad []byte) (MaskedCard, error) {
	layer := m.Depth - 1
	if layer < 0 {
		return MaskedCard{}, errors.New("card has no mask layer")
	}
	if err := m.Check(); err != nil {
		return MaskedCard{}, &IntegrityError{Layer: layer, Reason: err.Error()}
	}
	if len(pad) != len(m.Ciphertext) {
		return MaskedCard{}, &IntegrityError{
			Layer:  layer,
			Reason: fmt.Sprintf("pad has length %d, card has %d bytes", len(pad), len(m.Ciphertext)),
		}
	}
	ct := xor(m.Ciphertext, pad)
	inner, err := hideInner(pad, m.Inner)
	if err != nil {
		return MaskedCard{}, err
	}
	actual, err := Tag(pad, layer, ct, inner)
	if err != nil {
		return MaskedCard{}, err
	}
	if !hmac.Equal(actual, m.Tag) {
		return MaskedCard{}, &IntegrityError{Layer: layer, Expected: bytes.Clone(m.Tag), Actual: actual}
	}
	out := MaskedCard{Ciphertext: ct, Depth: layer}
	if layer > 0 {
		out.Tag, out.Inner = inner[:TagSize], inner[TagSize:]
		if len(out.Inner) == 0 {
			out.Inner = nil
		}
	}
	return out, nil
}

// Open removes every layer, pads given outermost first, and returns the
// encrypted card. Only an encrypted card returned by Open may be decrypted.
func (m MaskedCard) Open(pads ...[]byte) (cardcipher.EncryptedCard, error) {
	if len(pads) != m.Depth {
		return nil, fmt.Errorf("%d pads disclosed for %d mask layers", len(pads), m.Depth)
	}
	cur := m
	for _, pad := range pads {
		var err error
		if cur, err = cur.Unmask(pad); err != nil {
			return nil, err
		}
	}
	return cur.Encrypted()
}

// Encrypted returns the ciphertext once every layer has been removed.
func (m MaskedCard) Encrypted() (cardcipher.EncryptedCard, error) {
	if m.Depth != 0 {
		return nil, ErrLayersRemaining
	}
	return cardcipher.EncryptedCard(bytes.Clone(m.Ciphertext)), nil
}
