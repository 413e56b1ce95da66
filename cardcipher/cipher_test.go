package cardcipher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func ciphers(t *testing.T) []KeyedCipher {
	t.Helper()
	e, err := NewECIES("Ed25519")
	require.NoError(t, err)
	r, err := NewRSA(2048)
	require.NoError(t, err)
	return []KeyedCipher{e, r}
}

func TestEncryptDecrypt(t *testing.T) {
	for _, c := range ciphers(t) {
		t.Run(c.Name(), func(t *testing.T) {
			kp, err := c.GenerateKey()
			require.NoError(t, err)
			size, err := c.CiphertextSize(kp.Public)
			require.NoError(t, err)
			for _, v := range []int{0, 1, 25, 51, MaxValue} {
				ct, err := c.Encrypt(kp.Public, v)
				require.NoError(t, err)
				require.Len(t, ct, size)
				got, err := c.Decrypt(kp, ct)
				require.NoError(t, err)
				require.Equal(t, v, got)
			}
		})
	}
}

func TestEncryptionIsRandomized(t *testing.T) {
	for _, c := range ciphers(t) {
		kp, err := c.GenerateKey()
		require.NoError(t, err)
		a, err := c.Encrypt(kp.Public, 7)
		require.NoError(t, err)
		b, err := c.Encrypt(kp.Public, 7)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	}
}

func TestDecryptErrors(t *testing.T) {
	for _, c := range ciphers(t) {
		t.Run(c.Name(), func(t *testing.T) {
			kp, err := c.GenerateKey()
			require.NoError(t, err)
			other, err := c.GenerateKey()
			require.NoError(t, err)
			ct, err := c.Encrypt(kp.Public, 3)
			require.NoError(t, err)

			var decErr *DecryptionError
			_, err = c.Decrypt(kp, ct[:len(ct)-1])
			require.True(t, errors.As(err, &decErr))

			_, err = c.Decrypt(other, ct)
			require.True(t, errors.As(err, &decErr))

			flipped := append(EncryptedCard(nil), ct...)
			flipped[len(flipped)-1] ^= 0x80
			_, err = c.Decrypt(kp, flipped)
			require.True(t, errors.As(err, &decErr))

			_, err = c.Decrypt(&KeyPair{Public: kp.Public}, ct)
			require.ErrorIs(t, err, ErrForeignKey)
		})
	}
}

func TestInvalidInputs(t *testing.T) {
	c, err := NewECIES("")
	require.NoError(t, err)
	kp, err := c.GenerateKey()
	require.NoError(t, err)
	_, err = c.Encrypt(kp.Public, MaxValue+1)
	require.Error(t, err)
	_, err = c.Encrypt(kp.Public, -1)
	require.Error(t, err)
	_, err = c.Encrypt([]byte{1, 2, 3}, 1)
	require.Error(t, err)

	_, err = NewRSA(1024)
	require.Error(t, err)
	_, err = NewECIES("no-such-suite")
	require.Error(t, err)
	_, err = New("xor", "", 0)
	require.Error(t, err)
	r, err := New("rsa-oaep", "", 0)
	require.NoError(t, err)
	require.Equal(t, "rsa-oaep-2048", r.Name())
}
