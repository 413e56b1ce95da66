package reveal

import (
	"github.com/google/uuid"

	"github.com/luca-patrignani/fairdeal/domain/deck"
)

// Ledger entry kinds written by the protocol.
const (
	KindReveal = "reveal"
	KindAbort  = "abort"
	KindEpoch  = "epoch"
)

// Record is the audit entry of a finished round. Disclosures hold the mask
// keys of every layer, outermost first, so any peer can later replay the
// unmasking against the sealed deck.
type Record struct {
	RoundID        uuid.UUID         `json:"round_id"`
	Epoch          int               `json:"epoch"`
	Position       int               `json:"position"`
	Disclosures    []deck.Disclosure `json:"disclosures"`
	Ciphertext     []byte            `json:"ciphertext,omitempty"`
	PlaintextClaim int               `json:"plaintext_claim"`
	VerifiedBy     []int             `json:"verified_by"`
	State          State             `json:"state"`
	Error          string            `json:"error,omitempty"`
}

// EpochRecord is written when a new deck replaces an exhausted one.
type EpochRecord struct {
	Epoch int   `json:"epoch"`
	Size  int   `json:"size"`
	Order []int `json:"order"`
}
