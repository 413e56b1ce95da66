package session

import (
	"errors"
	"fmt"

	"github.com/luca-patrignani/fairdeal/commitment"
	"github.com/luca-patrignani/fairdeal/dealer"
	"github.com/luca-patrignani/fairdeal/messages"
)

// KindDeal is the ledger kind of committed index deals.
const KindDeal = "deal"

// DealRecord is the ledger entry of an index deal.
type DealRecord struct {
	dealer.Deal
	Secrets [][]byte `json:"secrets"`
}

// agreeSecrets runs a commit and a reveal exchange and returns the revealed
// secret of every peer, indexed by rank. A secret that does not match its
// commitment fails the exchange on every peer with a *commitment.MismatchError.
func (s *Session) agreeSecrets() ([][]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	n := s.net.GetPeerCount()
	commits := make([]*commitment.Commitment, n)

	var (
		index  int
		secret []byte
		err    error
	)
	if s.batchSize > 0 {
		if s.batch == nil || s.batch.Remaining() == 0 {
			if err := s.commitBatch(); err != nil {
				return nil, err
			}
		}
		index, secret, err = s.batch.Next()
		if err != nil {
			return nil, err
		}
		for rank, batch := range s.peerBatch {
			if index >= len(batch) {
				return nil, fmt.Errorf("peer %d committed %d secrets, need %d", rank, len(batch), index+1)
			}
			commits[rank] = batch[index]
		}
	} else {
		if secret, err = commitment.NewSecret(s.secretSize); err != nil {
			return nil, err
		}
		own, err := commitment.Commit(secret, s.scheme)
		if err != nil {
			return nil, err
		}
		commits[s.rank] = own
		err = s.allToAll(messages.TypeCommit, messages.CommitMsg{Digest: own.Digest()}, func(rank int, data []byte) error {
			var m messages.CommitMsg
			if err := s.open(data, rank, messages.TypeCommit, &m); err != nil {
				return err
			}
			c, err := commitment.FromDigest(m.Digest, s.scheme)
			if err != nil {
				return fmt.Errorf("peer %d: %w", rank, err)
			}
			commits[rank] = c
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}

	secrets := make([][]byte, n)
	secrets[s.rank] = secret
	err = s.allToAll(messages.TypeReveal, messages.RevealMsg{Index: index, Secret: secret}, func(rank int, data []byte) error {
		var m messages.RevealMsg
		if err := s.open(data, rank, messages.TypeReveal, &m); err != nil {
			return err
		}
		if m.Index != index {
			return fmt.Errorf("peer %d revealed secret %d, expected %d", rank, m.Index, index)
		}
		if len(m.Secret) < commitment.MinSecretSize {
			return fmt.Errorf("peer %d revealed a secret of %d bytes", rank, len(m.Secret))
		}
		if err := commits[rank].Reveal(m.Secret); err != nil {
			return fmt.Errorf("peer %d: %w", rank, err)
		}
		secrets[rank] = m.Secret
		return nil
	})
	if err != nil {
		s.logger.Warn("commitment violated", "err", err)
		return nil, fmt.Errorf("reveal: %w", err)
	}
	return secrets, nil
}

// commitBatch commits to a fresh batch of secrets and collects the batches
// of the other peers.
func (s *Session) commitBatch() error {
	batch, err := commitment.NewBatch(s.batchSize, s.secretSize, s.scheme)
	if err != nil {
		return err
	}
	peerBatch := make(map[int][]*commitment.Commitment)
	err = s.allToAll(messages.TypeCommit, messages.CommitMsg{Batch: batch.Digests()}, func(rank int, data []byte) error {
		var m messages.CommitMsg
		if err := s.open(data, rank, messages.TypeCommit, &m); err != nil {
			return err
		}
		if len(m.Batch) != s.batchSize {
			return fmt.Errorf("peer %d committed %d secrets, expected %d", rank, len(m.Batch), s.batchSize)
		}
		cs := make([]*commitment.Commitment, len(m.Batch))
		for i, d := range m.Batch {
			c, err := commitment.FromDigest(d, s.scheme)
			if err != nil {
				return fmt.Errorf("peer %d: %w", rank, err)
			}
			cs[i] = c
		}
		peerBatch[rank] = cs
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch commit: %w", err)
	}
	s.batch, s.peerBatch = batch, peerBatch
	s.logger.Debug("batch committed", "secrets", s.batchSize)
	return nil
}

// DealIndex agrees with every peer on the next card index without a trusted
// dealer. All peers return the same Deal.
func (s *Session) DealIndex() (dealer.Deal, error) {
	secrets, err := s.agreeSecrets()
	if err != nil {
		return dealer.Deal{}, err
	}
	deal, err := s.dealer.Deal(secrets...)
	if err != nil {
		return dealer.Deal{}, err
	}
	if _, err := s.chain.Append(KindDeal, s.rank, DealRecord{Deal: deal, Secrets: secrets}); err != nil {
		return dealer.Deal{}, errors.Join(err, fmt.Errorf("index %d dealt but not recorded", deal.Index))
	}
	s.logger.Debug("index dealt", "index", deal.Index, "epoch", deal.Epoch, "step", deal.Step, "probes", deal.Probes)
	return deal, nil
}
