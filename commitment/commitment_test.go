package commitment

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitReveal(t *testing.T) {
	for _, scheme := range []Scheme{SHA256, SHA3_256} {
		t.Run(string(scheme), func(t *testing.T) {
			secret, err := NewSecret(DefaultSecretSize)
			require.NoError(t, err)
			require.Len(t, secret, DefaultSecretSize)

			c, err := Commit(secret, scheme)
			require.NoError(t, err)
			require.False(t, c.Closed())
			_, ok := c.Revealed()
			require.False(t, ok)

			require.True(t, c.Verify(secret))
			require.NoError(t, c.Reveal(secret))
			require.True(t, c.Closed())
			revealed, ok := c.Revealed()
			require.True(t, ok)
			require.Equal(t, secret, revealed)

			// revealing the same value twice is harmless
			require.NoError(t, c.Reveal(secret))
		})
	}
}

func TestRevealMismatch(t *testing.T) {
	secret, err := NewSecret(DefaultSecretSize)
	require.NoError(t, err)
	c, err := Commit(secret, SHA256)
	require.NoError(t, err)

	other := bytes.Clone(secret)
	other[0] ^= 0x01
	require.False(t, c.Verify(other))

	err = c.Reveal(other)
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, c.Digest(), mismatch.Expected)
	require.NotEqual(t, mismatch.Expected, mismatch.Actual)
	require.False(t, c.Closed())
}

func TestFromDigest(t *testing.T) {
	secret := bytes.Repeat([]byte{0x01}, 8)
	local, err := Commit(secret, SHA256)
	require.NoError(t, err)
	// sha256 of eight 0x01 bytes
	require.Equal(t, "04abc8821a06e5a30937967d11ad10221cb5ac3b5273e434f1284ee87129a061", hex.EncodeToString(local.Digest()))

	remote, err := FromDigest(local.Digest(), SHA256)
	require.NoError(t, err)
	require.NoError(t, remote.Reveal(secret))

	_, err = FromDigest([]byte{1, 2, 3}, SHA256)
	require.Error(t, err)
	_, err = FromDigest(local.Digest(), Scheme("md5"))
	require.Error(t, err)
}

func TestDigestIsImmutable(t *testing.T) {
	c, err := Commit([]byte("secret"), SHA256)
	require.NoError(t, err)
	d := c.Digest()
	d[0] ^= 0xff
	require.NotEqual(t, d, c.Digest())
}

func TestEmptySecret(t *testing.T) {
	_, err := Commit(nil, SHA256)
	require.ErrorIs(t, err, ErrEmptySecret)
	c, err := Commit([]byte{0}, SHA256)
	require.NoError(t, err)
	require.ErrorIs(t, c.Reveal(nil), ErrEmptySecret)
	_, err = NewSecret(MinSecretSize - 1)
	require.Error(t, err)
}

// Distinct secrets must never produce the same digest.
func TestBinding(t *testing.T) {
	const trials = 5000
	seen := make(map[string]string, 2*trials)
	for range trials {
		a, err := NewSecret(MinSecretSize)
		require.NoError(t, err)
		b, err := NewSecret(MinSecretSize)
		require.NoError(t, err)
		if bytes.Equal(a, b) {
			continue
		}
		for _, s := range [][]byte{a, b} {
			c, err := Commit(s, SHA256)
			require.NoError(t, err)
			key := string(c.Digest())
			if prev, ok := seen[key]; ok && prev != string(s) {
				t.Fatalf("digest collision between %x and %x", prev, s)
			}
			seen[key] = string(s)
		}
	}
}

func TestBatch(t *testing.T) {
	b, err := NewBatch(52, DefaultSecretSize, SHA256)
	require.NoError(t, err)
	require.Equal(t, 52, b.Len())
	digests := b.Digests()
	require.Len(t, digests, 52)

	for i := range 52 {
		pos, secret, err := b.Next()
		require.NoError(t, err)
		require.Equal(t, i, pos)
		remote, err := FromDigest(digests[pos], SHA256)
		require.NoError(t, err)
		require.NoError(t, remote.Reveal(secret))
	}
	require.Equal(t, 0, b.Remaining())
	_, _, err = b.Next()
	require.ErrorIs(t, err, ErrBatchExhausted)
}
