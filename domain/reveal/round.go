package reveal

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/luca-patrignani/fairdeal/cardcipher"
	"github.com/luca-patrignani/fairdeal/domain/deck"
)

// Round is the reveal of one card. A round is driven by a single goroutine;
// distinct rounds of the same protocol may run concurrently.
type Round struct {
	ID    uuid.UUID
	Epoch int

	protocol    *Protocol
	deck        *deck.Deck
	position    int
	state       State
	disclosures []deck.Disclosure
	ct          cardcipher.EncryptedCard
	value       int
	verifiedBy  map[int]bool
	err         *AbortError
}

// State returns the current state of the round.
func (r *Round) State() State { return r.state }

// Position returns the announced position, or -1 before the announcement.
func (r *Round) Position() int { return r.position }

// Err returns the reason of the abort, if any.
func (r *Round) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Value returns the decrypted or claimed value once the round reached Decrypted.
func (r *Round) Value() (int, bool) {
	if r.state != Decrypted && r.state != CrossVerified {
		return 0, false
	}
	return r.value, true
}

// Ciphertext returns the unmasked ciphertext once the round reached Decrypted.
func (r *Round) Ciphertext() cardcipher.EncryptedCard { return bytes.Clone(r.ct) }

// Disclosures returns the disclosures received so far, outermost first.
func (r *Round) Disclosures() []deck.Disclosure { return slices.Clone(r.disclosures) }

// Pending returns the disclosure expected next: its layer, the position it
// must refer to and the rank of the peer holding it.
func (r *Round) Pending() (layer, position, rank int, ok bool) {
	if r.state != IndexAnnounced {
		return 0, 0, 0, false
	}
	layer = len(r.deck.Order) - 1 - len(r.disclosures)
	position = r.position
	if n := len(r.disclosures); n > 0 {
		position = r.disclosures[n-1].Source
	}
	return layer, position, r.deck.Order[layer], true
}

func (r *Round) expect(s State) error {
	if r.state == s {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return fmt.Errorf("round %s is %s, expected %s", r.ID, r.state, s)
}

// Announce fixes the position being revealed. It fails with ErrDeckExhausted
// once every position of the epoch was announced.
func (r *Round) Announce(position int) error {
	if err := r.expect(Pending); err != nil {
		return err
	}
	if err := r.protocol.reserve(r, position); err != nil {
		return err
	}
	r.position = position
	r.state = IndexAnnounced
	return nil
}

// Disclose adds the disclosure of the next layer, outermost first. A
// disclosure that does not continue the chain aborts the round and blames
// the peer that sent it.
func (r *Round) Disclose(d deck.Disclosure) error {
	if err := r.expect(IndexAnnounced); err != nil {
		return err
	}
	layer, position, rank, _ := r.Pending()
	switch {
	case d.Layer != layer:
		return r.fail(d.Rank, fmt.Errorf("disclosed layer %d, expected %d", d.Layer, layer))
	case d.Rank != rank:
		return r.fail(d.Rank, fmt.Errorf("layer %d disclosed by peer %d, applied by peer %d", layer, d.Rank, rank))
	case d.Position != position:
		return r.fail(d.Rank, fmt.Errorf("layer %d disclosed position %d, expected %d", layer, d.Position, position))
	case d.Source < 0 || d.Source >= r.deck.Size:
		return r.fail(d.Rank, fmt.Errorf("layer %d disclosed source %d out of range", layer, d.Source))
	}
	d.Pad = bytes.Clone(d.Pad)
	r.disclosures = append(r.disclosures, d)
	if len(r.disclosures) == len(r.deck.Order) {
		r.state = PadDisclosed
	}
	return nil
}

func (r *Round) open() (cardcipher.EncryptedCard, error) {
	card, err := r.deck.Card(r.position)
	if err != nil {
		return nil, err
	}
	pads := make([][]byte, len(r.disclosures))
	for i, d := range r.disclosures {
		pads[i] = d.Pad
	}
	return card.Open(pads...)
}

// Decrypt removes every mask layer and decrypts the card with the recipient
// key pair. The ciphertext is never decrypted unless every layer passed its
// integrity check.
func (r *Round) Decrypt(c cardcipher.KeyedCipher, kp *cardcipher.KeyPair) (int, error) {
	if err := r.expect(PadDisclosed); err != nil {
		return 0, err
	}
	ct, err := r.open()
	if err != nil {
		return 0, r.fail(-1, err)
	}
	value, err := c.Decrypt(kp, ct)
	if err != nil {
		return 0, r.fail(-1, err)
	}
	if value < 0 || value >= r.deck.Size {
		return 0, r.fail(-1, &cardcipher.DecryptionError{Reason: fmt.Sprintf("card value %d outside a deck of %d", value, r.deck.Size)})
	}
	r.ct, r.value = ct, value
	r.state = Decrypted
	return value, nil
}

// AcceptClaim records the value announced by the recipient, for peers that
// cannot decrypt. The claimed ciphertext must be the one the disclosed pads
// uncover.
func (r *Round) AcceptClaim(recipient, value int, ct cardcipher.EncryptedCard) error {
	if err := r.expect(PadDisclosed); err != nil {
		return err
	}
	opened, err := r.open()
	if err != nil {
		return r.fail(-1, err)
	}
	if !bytes.Equal(opened, ct) {
		return r.fail(recipient, errors.New("claimed ciphertext differs from the unmasked card"))
	}
	if value < 0 || value >= r.deck.Size {
		return r.fail(recipient, fmt.Errorf("claimed value %d outside a deck of %d", value, r.deck.Size))
	}
	r.ct, r.value = opened, value
	r.state = Decrypted
	return nil
}

// CrossVerify checks the reveal against the local stage record and counts
// the verification for rec.Rank.
func (r *Round) CrossVerify(rec *deck.Record) error {
	if err := r.expect(Decrypted); err != nil {
		return err
	}
	if err := rec.Verify(r.deck, r.position, r.disclosures, r.ct, r.value); err != nil {
		return r.fail(-1, &CrossVerificationError{Position: r.position, Rank: rec.Rank, Err: err})
	}
	return r.MarkVerified(rec.Rank)
}

// MarkVerified counts a successful cross verification reported by rank.
// The round becomes CrossVerified once every shuffling peer verified it.
func (r *Round) MarkVerified(rank int) error {
	if err := r.expect(Decrypted); err != nil {
		return err
	}
	if !slices.Contains(r.deck.Order, rank) {
		return fmt.Errorf("peer %d did not shuffle this deck", rank)
	}
	r.verifiedBy[rank] = true
	if len(r.verifiedBy) == len(r.deck.Order) {
		r.state = CrossVerified
		r.protocol.finish(r)
	}
	return nil
}

// Abort tears the round down. Peer is the rank to blame, -1 if unknown.
// Aborting a finished round has no effect.
func (r *Round) Abort(peer int, cause error) error {
	if r.state.Terminal() {
		return r.Err()
	}
	return r.fail(peer, cause)
}

func (r *Round) fail(peer int, cause error) error {
	r.err = &AbortError{RoundID: r.ID, Position: r.position, Peer: peer, State: r.state, Err: cause}
	r.state = Aborted
	r.protocol.finish(r)
	return r.err
}

// Record returns the audit record of the round.
func (r *Round) Record() Record {
	rec := Record{
		RoundID:        r.ID,
		Epoch:          r.Epoch,
		Position:       r.position,
		Disclosures:    r.Disclosures(),
		Ciphertext:     bytes.Clone(r.ct),
		PlaintextClaim: -1,
		State:          r.state,
	}
	if r.ct != nil {
		rec.PlaintextClaim = r.value
	}
	for rank := range r.verifiedBy {
		rec.VerifiedBy = append(rec.VerifiedBy, rank)
	}
	slices.Sort(rec.VerifiedBy)
	if r.err != nil {
		rec.Error = r.err.Err.Error()
	}
	return rec
}
