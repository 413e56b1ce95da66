package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/luca-patrignani/fairdeal/dealer"
	"github.com/luca-patrignani/fairdeal/domain/deck"
	"github.com/luca-patrignani/fairdeal/domain/reveal"
	"github.com/luca-patrignani/fairdeal/messages"
)

// Result is the outcome of a public reveal, identical on every peer.
type Result struct {
	Position int
	Value    int
	Epoch    int
	Deal     *dealer.Deal
	Record   reveal.Record
}

// Protocol returns the reveal protocol of the current deck, nil before the
// first BuildDeck.
func (s *Session) Protocol() *reveal.Protocol { return s.protocol }

// Recipient returns the rank holding the key of the current deck.
func (s *Session) Recipient() int { return s.recipient }

// BuildDeck shuffles a new deck whose cards are encrypted under the key of
// recipient. Every peer applies one stage, starting with the peer after the
// recipient. When a previous deck exists, its protocol moves to a new epoch.
func (s *Session) BuildDeck(recipient int) error {
	if err := s.ready(); err != nil {
		return err
	}
	n := s.net.GetPeerCount()
	if recipient < 0 || recipient >= n {
		return fmt.Errorf("recipient %d out of range [0, %d)", recipient, n)
	}
	order := stageOrder(n, recipient)
	d, err := deck.New(s.deckSize, s.peers[recipient].Key, order)
	if err != nil {
		return err
	}

	var (
		record *deck.Record
		local  error
	)
	for _, root := range order {
		msg := messages.MaskedDeckMsg{Recipient: recipient}
		if root == s.rank {
			if local == nil {
				record, local = deck.Stage{Rank: s.rank, Cipher: s.cipher}.Apply(d)
			}
			if local != nil {
				msg.Error = local.Error()
			} else {
				msg.Cards = d.Cards()
				if s.tamper != nil {
					s.tamper(msg.Cards)
				}
			}
		}
		data, err := s.broadcast(messages.TypeMaskedDeck, root, msg)
		if err != nil {
			return err
		}
		if root == s.rank || local != nil {
			continue
		}
		var m messages.MaskedDeckMsg
		if err := s.open(data, root, messages.TypeMaskedDeck, &m); err != nil {
			local = err
			continue
		}
		switch {
		case m.Error != "":
			local = fmt.Errorf("peer %d failed its stage: %s", root, m.Error)
		case m.Recipient != recipient:
			local = fmt.Errorf("peer %d shuffled for recipient %d, expected %d", root, m.Recipient, recipient)
		default:
			local = d.Accept(root, m.Cards)
		}
	}
	if local == nil {
		local = d.Seal()
	}
	if err := s.verify(-1, local); err != nil {
		s.logger.Warn("deck construction failed", "recipient", recipient, "err", err)
		return fmt.Errorf("build deck: %w", err)
	}

	if s.protocol == nil {
		s.protocol, err = reveal.New(d,
			reveal.WithRank(s.rank),
			reveal.WithLedger(s.chain),
			reveal.WithSteps(s.steps...),
			reveal.WithLogger(s.logger),
		)
	} else {
		err = s.protocol.Reset(d)
	}
	if err != nil {
		return err
	}
	s.deck, s.record, s.recipient = d, record, recipient
	s.logger.Debug("deck built", "recipient", recipient, "order", order, "epoch", s.protocol.Epoch())
	return nil
}

// Reveal publicly reveals the card at position. Peer 0 announces the
// position; every peer then discloses its pad, the recipient decrypts and
// announces the value, and every peer cross verifies it against its own
// shuffle record.
func (s *Session) Reveal(position int) (Result, error) {
	if s.protocol == nil {
		return Result{}, errors.New("no deck has been built")
	}
	if s.protocol.Exhausted() {
		return Result{}, reveal.ErrDeckExhausted
	}
	msg := messages.IndexAnnounceMsg{Position: position, Round: uuid.New().String()}
	data, err := s.broadcast(messages.TypeIndexAnnounce, 0, msg)
	if err != nil {
		return Result{}, err
	}

	var announced messages.IndexAnnounceMsg
	local := s.open(data, 0, messages.TypeIndexAnnounce, &announced)
	round, err := s.protocol.Begin()
	if err != nil {
		return Result{}, err
	}
	if local == nil {
		if id, err := uuid.Parse(announced.Round); err == nil {
			round.ID = id
		}
		local = round.Announce(announced.Position)
	}
	if local != nil {
		// The round keeps the error, later steps read it through State and
		// Err. Keep taking part so that the other peers finish the round too.
		_ = round.Abort(0, local)
	}
	return s.finishReveal(round, nil)
}

// RevealNext reveals the card at a position derived from freshly committed
// secrets of every peer, so that no peer chooses which card comes next.
func (s *Session) RevealNext() (Result, error) {
	if s.protocol == nil {
		return Result{}, errors.New("no deck has been built")
	}
	if s.protocol.Exhausted() {
		return Result{}, reveal.ErrDeckExhausted
	}
	secrets, err := s.agreeSecrets()
	if err != nil {
		return Result{}, err
	}
	round, deal, err := s.protocol.Deal(secrets...)
	if err != nil {
		return Result{}, err
	}
	return s.finishReveal(round, &deal)
}

// finishReveal runs the disclosure, claim and verdict exchanges of round.
func (s *Session) finishReveal(round *reveal.Round, deal *dealer.Deal) (Result, error) {
	position := round.Position()

	for i := len(s.deck.Order) - 1; i >= 0; i-- {
		root := s.deck.Order[i]
		var msg messages.PadDiscloseMsg
		if root == s.rank {
			msg = s.disclose(round)
		}
		data, err := s.broadcast(messages.TypePadDisclose, root, msg)
		if err != nil {
			return Result{}, err
		}
		if root == s.rank || round.State().Terminal() {
			continue
		}
		var m messages.PadDiscloseMsg
		if err := s.open(data, root, messages.TypePadDisclose, &m); err != nil {
			_ = round.Abort(root, err)
			continue
		}
		if m.Error != "" {
			_ = round.Abort(-1, fmt.Errorf("peer %d withheld its pad: %s", root, m.Error))
			continue
		}
		_ = round.Disclose(m.Disclosure(root))
	}

	var claim messages.ClaimMsg
	if s.rank == s.recipient {
		claim = s.decrypt(round)
	}
	data, err := s.broadcast(messages.TypeClaim, s.recipient, claim)
	if err != nil {
		return Result{}, err
	}
	if s.rank != s.recipient && !round.State().Terminal() {
		var m messages.ClaimMsg
		switch err := s.open(data, s.recipient, messages.TypeClaim, &m); {
		case err != nil:
			_ = round.Abort(s.recipient, err)
		case m.Error != "":
			_ = round.Abort(-1, fmt.Errorf("recipient %d could not decrypt: %s", s.recipient, m.Error))
		default:
			_ = round.AcceptClaim(s.recipient, m.Value, m.Ciphertext)
		}
	}

	var verdict error
	if round.State() == reveal.Decrypted {
		verdict = round.CrossVerify(s.record)
	} else {
		verdict = round.Err()
	}
	if verdict == nil {
		verdict = s.verdicts(round)
	} else {
		_ = s.verdicts(round)
	}

	res := Result{Position: position, Epoch: round.Epoch, Deal: deal, Record: round.Record()}
	if round.State() != reveal.CrossVerified {
		if verdict == nil {
			verdict = round.Err()
		}
		return res, verdict
	}
	res.Value, _ = round.Value()
	return res, nil
}

// disclose prepares the pad disclosure of the local layer.
func (s *Session) disclose(round *reveal.Round) messages.PadDiscloseMsg {
	if round.State().Terminal() {
		return messages.PadDiscloseMsg{Error: round.Err().Error()}
	}
	layer, position, rank, ok := round.Pending()
	if !ok || rank != s.rank || layer != s.record.Layer {
		return messages.PadDiscloseMsg{Error: fmt.Sprintf("round is %s, not waiting for layer %d", round.State(), s.record.Layer)}
	}
	d, err := s.record.Disclose(position)
	if err != nil {
		_ = round.Abort(-1, err)
		return messages.PadDiscloseMsg{Error: err.Error()}
	}
	if err := round.Disclose(d); err != nil {
		return messages.PadDiscloseMsg{Error: err.Error()}
	}
	return messages.NewPadDiscloseMsg(d)
}

// decrypt opens the card as recipient and prepares the claim.
func (s *Session) decrypt(round *reveal.Round) messages.ClaimMsg {
	if round.State().Terminal() {
		return messages.ClaimMsg{Error: round.Err().Error()}
	}
	value, err := round.Decrypt(s.cipher, s.key)
	if err != nil {
		return messages.ClaimMsg{Error: err.Error()}
	}
	return messages.ClaimMsg{Value: value, Ciphertext: round.Ciphertext()}
}

// verdicts exchanges the cross verification outcome of every peer.
func (s *Session) verdicts(round *reveal.Round) error {
	msg := messages.VerdictMsg{Position: round.Position(), OK: round.State() != reveal.Aborted}
	if !msg.OK {
		msg.Reason = round.Err().Error()
	}
	return s.allToAll(messages.TypeVerdict, msg, func(rank int, data []byte) error {
		var v messages.VerdictMsg
		if err := s.open(data, rank, messages.TypeVerdict, &v); err != nil {
			return round.Abort(rank, err)
		}
		if !v.OK {
			return round.Abort(-1, &reveal.CrossVerificationError{Position: v.Position, Rank: rank, Err: errors.New(v.Reason)})
		}
		if round.State() == reveal.Decrypted {
			return round.MarkVerified(rank)
		}
		return nil
	})
}
