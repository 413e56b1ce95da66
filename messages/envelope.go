package messages

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadSignature is returned when an envelope does not verify.
var ErrBadSignature = errors.New("invalid envelope signature")

// Envelope wraps a payload with its type, sender and sequence number. Seq
// increases with every exchange of a session so that a signed envelope
// cannot be replayed into a later exchange.
type Envelope struct {
	Type      Type            `json:"type"`
	Session   string          `json:"session"`
	Seq       uint64          `json:"seq"`
	Sender    int             `json:"sender"`
	Payload   json.RawMessage `json:"payload"`
	Signature []byte          `json:"sig,omitempty"`
}

// NewEnvelope encodes payload.
func NewEnvelope(t Type, session string, seq uint64, sender int, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Session: session, Seq: seq, Sender: sender, Payload: b}, nil
}

// serialize returns the JSON form of the envelope with the Signature field
// cleared.
func (e *Envelope) serialize() ([]byte, error) {
	tmp := *e
	tmp.Signature = nil
	return json.Marshal(tmp)
}

// Sign signs the envelope with priv.
func (e *Envelope) Sign(priv ed25519.PrivateKey) error {
	b, err := e.serialize()
	if err != nil {
		return err
	}
	e.Signature = ed25519.Sign(priv, b)
	return nil
}

// VerifySignature verifies the envelope against pub. It returns an error if
// the signature is missing.
func (e *Envelope) VerifySignature(pub ed25519.PublicKey) (bool, error) {
	if len(e.Signature) == 0 {
		return false, errors.New("missing signature")
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("identity key has length %d", len(pub))
	}
	b, err := e.serialize()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, b, e.Signature), nil
}

// Decode checks the type of the envelope and unmarshals its payload into v.
func (e *Envelope) Decode(t Type, v any) error {
	if e.Type != t {
		return fmt.Errorf("expected %s message from peer %d, got %s", t, e.Sender, e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s from peer %d: %w", t, e.Sender, err)
	}
	return nil
}

// Marshal encodes the envelope for the wire.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes an envelope received from the wire.
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}

// Open decodes data, checks that it was signed by pub for the expected
// session, sequence number and sender, and unmarshals the payload of type t
// into v.
func Open(data []byte, pub ed25519.PublicKey, session string, seq uint64, sender int, t Type, v any) error {
	e, err := Unmarshal(data)
	if err != nil {
		return err
	}
	if e.Session != session || e.Seq != seq || e.Sender != sender {
		return fmt.Errorf("envelope for session %q seq %d from peer %d, expected session %q seq %d from peer %d",
			e.Session, e.Seq, e.Sender, session, seq, sender)
	}
	if pub != nil {
		ok, err := e.VerifySignature(pub)
		if err != nil {
			return fmt.Errorf("peer %d: %w", sender, err)
		}
		if !ok {
			return fmt.Errorf("peer %d: %w", sender, ErrBadSignature)
		}
	}
	return e.Decode(t, v)
}
