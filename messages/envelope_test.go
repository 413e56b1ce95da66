package messages

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/fairdeal/domain/deck"
	"github.com/luca-patrignani/fairdeal/mask"
)

func identity(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestSignAndOpen(t *testing.T) {
	pub, priv := identity(t)
	msg := MaskedDeckMsg{
		Recipient: 1,
		Cards: []mask.MaskedCard{
			{Ciphertext: []byte{1, 2, 3}, Tag: []byte{4}, Inner: []byte{5}, Depth: 2},
		},
	}
	e, err := NewEnvelope(TypeMaskedDeck, "s1", 7, 0, msg)
	require.NoError(t, err)
	require.NoError(t, e.Sign(priv))
	data, err := e.Marshal()
	require.NoError(t, err)

	var got MaskedDeckMsg
	require.NoError(t, Open(data, pub, "s1", 7, 0, TypeMaskedDeck, &got))
	require.Equal(t, msg, got)
}

func TestOpenRejects(t *testing.T) {
	pub, priv := identity(t)
	other, _ := identity(t)
	e, err := NewEnvelope(TypeCommit, "s1", 3, 1, CommitMsg{Digest: []byte{9, 9}})
	require.NoError(t, err)
	require.NoError(t, e.Sign(priv))
	data, err := e.Marshal()
	require.NoError(t, err)

	var c CommitMsg
	require.Error(t, Open(data, pub, "s1", 4, 1, TypeCommit, &c), "replayed into a later exchange")
	require.Error(t, Open(data, pub, "s2", 3, 1, TypeCommit, &c), "replayed into another session")
	require.Error(t, Open(data, pub, "s1", 3, 0, TypeCommit, &c), "wrong sender")
	require.Error(t, Open(data, pub, "s1", 3, 1, TypeReveal, &c), "wrong type")
	require.ErrorIs(t, Open(data, other, "s1", 3, 1, TypeCommit, &c), ErrBadSignature)

	e.Payload = []byte(`{"digest":"AAA="}`)
	forged, err := e.Marshal()
	require.NoError(t, err)
	err = Open(forged, pub, "s1", 3, 1, TypeCommit, &c)
	require.True(t, errors.Is(err, ErrBadSignature), "forged payload accepted: %v", err)
}

func TestMissingSignature(t *testing.T) {
	pub, _ := identity(t)
	e, err := NewEnvelope(TypeVerdict, "s", 0, 0, VerdictMsg{Position: 1, OK: true})
	require.NoError(t, err)
	ok, err := e.VerifySignature(pub)
	require.Error(t, err)
	require.False(t, ok)
}

func TestPadDisclose(t *testing.T) {
	d := deck.Disclosure{Rank: 2, Layer: 1, Position: 5, Source: 3, Pad: []byte{1, 2}}
	require.Equal(t, d, NewPadDiscloseMsg(d).Disclosure(2))
}
