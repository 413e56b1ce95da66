package messages

import (
	"crypto/ed25519"

	"github.com/luca-patrignani/fairdeal/domain/deck"
	"github.com/luca-patrignani/fairdeal/mask"
)

// Type identifies the payload of an Envelope.
type Type string

const (
	TypeCommit        Type = "commit"
	TypeReveal        Type = "reveal"
	TypePublicKey     Type = "public-key"
	TypeMaskedDeck    Type = "masked-deck"
	TypeIndexAnnounce Type = "index-announce"
	TypePadDisclose   Type = "pad-disclose"
	TypeClaim         Type = "claim"
	TypeVerdict       Type = "verdict"
)

// CommitMsg carries the digest of a secret committed for an index deal.
// Batch, when set, commits to several secrets at once, revealed one per
// deal in order.
type CommitMsg struct {
	Digest []byte   `json:"digest,omitempty"`
	Batch  [][]byte `json:"batch,omitempty"`
}

// RevealMsg opens a previously sent commitment. Index is the position of
// the secret in a batch commitment.
type RevealMsg struct {
	Index  int    `json:"index"`
	Secret []byte `json:"secret"`
}

// PublicKeyMsg announces the card encryption key of a peer and the identity
// key its envelopes are signed with.
type PublicKeyMsg struct {
	KeyBytes []byte            `json:"key_bytes"`
	Cipher   string            `json:"cipher"`
	Identity ed25519.PublicKey `json:"identity"`
}

// MaskedDeckMsg is the deck emitted by one shuffle stage.
// Error is set instead of Cards when the stage could not be applied.
type MaskedDeckMsg struct {
	Recipient int               `json:"recipient"`
	Cards     []mask.MaskedCard `json:"cards,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// IndexAnnounceMsg names the position being revealed.
type IndexAnnounceMsg struct {
	Round    string `json:"round"`
	Position int    `json:"position"`
}

// PadDiscloseMsg discloses the pad of one layer. An empty Pad means the
// sender refuses to disclose, with Error explaining why.
type PadDiscloseMsg struct {
	Position int    `json:"position"`
	Source   int    `json:"source"`
	Layer    int    `json:"layer"`
	Pad      []byte `json:"pad"`
	Error    string `json:"error,omitempty"`
}

// Disclosure converts the message sent by rank.
func (m PadDiscloseMsg) Disclosure(rank int) deck.Disclosure {
	return deck.Disclosure{Rank: rank, Layer: m.Layer, Position: m.Position, Source: m.Source, Pad: m.Pad}
}

// NewPadDiscloseMsg builds the message disclosing d.
func NewPadDiscloseMsg(d deck.Disclosure) PadDiscloseMsg {
	return PadDiscloseMsg{Position: d.Position, Source: d.Source, Layer: d.Layer, Pad: d.Pad}
}

// ClaimMsg is sent by the recipient after decryption, or carries the
// reason it could not decrypt.
type ClaimMsg struct {
	Value      int    `json:"value"`
	Ciphertext []byte `json:"ciphertext"`
	Error      string `json:"error,omitempty"`
}

// VerdictMsg reports the outcome of the sender's cross verification.
type VerdictMsg struct {
	Position int    `json:"position"`
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
}
