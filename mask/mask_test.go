package mask

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/fairdeal/cardcipher"
)

func TestRoundTrip(t *testing.T) {
	for _, size := range []int{1, 49, 256} {
		ct, err := NewPad(size) // any bytes will do as a ciphertext
		require.NoError(t, err)
		masked, pad, err := Seal(ct)
		require.NoError(t, err)
		require.Equal(t, 1, masked.Layers())
		require.Len(t, masked.Ciphertext, size)

		got, err := masked.Open(pad)
		require.NoError(t, err)
		require.Equal(t, cardcipher.EncryptedCard(ct), got)
	}
}

func TestLayers(t *testing.T) {
	ct := []byte("an encrypted card of some length")
	card, pad0, err := Seal(ct)
	require.NoError(t, err)
	card, pad1, err := card.MaskRandom()
	require.NoError(t, err)
	card, pad2, err := card.MaskRandom()
	require.NoError(t, err)
	require.Equal(t, 3, card.Layers())

	_, err = card.Encrypted()
	require.ErrorIs(t, err, ErrLayersRemaining)

	// layers come off outermost first
	_, err = card.Open(pad0, pad1, pad2)
	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))
	require.Equal(t, 2, integrity.Layer)

	got, err := card.Open(pad2, pad1, pad0)
	require.NoError(t, err)
	require.Equal(t, cardcipher.EncryptedCard(ct), got)

	_, err = card.Open(pad2, pad1)
	require.Error(t, err)
}

func TestMaskIsDeterministicGivenPad(t *testing.T) {
	ct := []byte{1, 2, 3, 4}
	pad := []byte{9, 9, 9, 9}
	a, err := MaskedCard{Ciphertext: ct}.Mask(pad)
	require.NoError(t, err)
	b, err := MaskedCard{Ciphertext: ct}.Mask(pad)
	require.NoError(t, err)
	require.True(t, a.Equal(b))
	require.Equal(t, []byte{8, 11, 10, 13}, a.Ciphertext)

	_, err = MaskedCard{Ciphertext: ct}.Mask([]byte{1})
	require.Error(t, err)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// A peer that knows an honest ciphertext and a ciphertext of its chosen
// value can shift the masked bytes by their difference. With plain XOR
// masking the recipient would decrypt the chosen value; the tag stops it.
func TestSubstitutedMaskedBytesAreRejected(t *testing.T) {
	c, err := cardcipher.NewECIES("Ed25519")
	require.NoError(t, err)
	kp, err := c.GenerateKey()
	require.NoError(t, err)

	honest, err := c.Encrypt(kp.Public, 5)
	require.NoError(t, err)
	target, err := c.Encrypt(kp.Public, 51)
	require.NoError(t, err)

	masked, pad, err := Seal(honest)
	require.NoError(t, err)

	forged := masked.Clone()
	forged.Ciphertext = xorBytes(masked.Ciphertext, xorBytes(target, honest))

	// without the tag check this is exactly the target ciphertext
	require.Equal(t, []byte(target), xorBytes(forged.Ciphertext, pad))

	_, err = forged.Open(pad)
	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))
	require.Equal(t, 0, integrity.Layer)
	require.NotEqual(t, integrity.Expected, integrity.Actual)

	// the honest card still opens and decrypts
	ct, err := masked.Open(pad)
	require.NoError(t, err)
	v, err := c.Decrypt(kp, ct)
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

// Disclosing a different pad is the other side of the same attack.
func TestSubstitutedPadIsRejected(t *testing.T) {
	c, err := cardcipher.NewECIES("Ed25519")
	require.NoError(t, err)
	kp, err := c.GenerateKey()
	require.NoError(t, err)
	honest, err := c.Encrypt(kp.Public, 10)
	require.NoError(t, err)
	target, err := c.Encrypt(kp.Public, 11)
	require.NoError(t, err)

	masked, pad, err := Seal(honest)
	require.NoError(t, err)
	forgedPad := xorBytes(pad, xorBytes(target, honest))

	_, err = masked.Unmask(forgedPad)
	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))

	_, err = masked.Unmask(pad[:len(pad)-1])
	require.True(t, errors.As(err, &integrity))
	require.NotEmpty(t, integrity.Reason)
}

func TestTamperedTagIsRejected(t *testing.T) {
	masked, pad, err := Seal([]byte("ciphertext"))
	require.NoError(t, err)
	masked.Tag[0] ^= 0x01
	_, err = masked.Unmask(pad)
	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))

	masked.Depth = 2
	_, err = masked.Unmask(pad)
	require.True(t, errors.As(err, &integrity))
	require.NotEmpty(t, integrity.Reason)

	_, err = MaskedCard{Ciphertext: []byte{1}}.Unmask([]byte{1})
	require.Error(t, err)
}

// The inner tags are covered by the outer tag, so flipping them is caught
// before the inner layer is even reached.
func TestTamperedInnerTagIsRejected(t *testing.T) {
	card, _, err := Seal([]byte("ciphertext"))
	require.NoError(t, err)
	card, pad1, err := card.MaskRandom()
	require.NoError(t, err)
	require.Len(t, card.Inner, TagSize)

	card.Inner[3] ^= 0x80
	_, err = card.Unmask(pad1)
	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))
	require.Equal(t, 1, integrity.Layer)
}

// A new layer must leave nothing of the card it covered in clear, or the
// peer that emitted that card could follow it through later shuffles.
func TestMaskHidesPreviousLayer(t *testing.T) {
	card, _, err := Seal([]byte("an encrypted card of some length"))
	require.NoError(t, err)
	for range 3 {
		next, pad, err := card.MaskRandom()
		require.NoError(t, err)
		all := append(append(bytes.Clone(next.Ciphertext), next.Tag...), next.Inner...)
		require.False(t, bytes.Contains(all, card.Tag), "previous tag visible")
		require.False(t, bytes.Contains(all, card.Ciphertext), "previous bytes visible")
		for i := 0; i+TagSize <= len(card.Inner); i += TagSize {
			require.False(t, bytes.Contains(all, card.Inner[i:i+TagSize]), "previous inner tag visible")
		}

		back, err := next.Unmask(pad)
		require.NoError(t, err)
		require.True(t, back.Equal(card))
		card = next
	}
}
