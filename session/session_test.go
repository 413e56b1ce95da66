package session

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/luca-patrignani/fairdeal/cardcipher"
	"github.com/luca-patrignani/fairdeal/dealer"
	"github.com/luca-patrignani/fairdeal/domain/reveal"
	"github.com/luca-patrignani/fairdeal/mask"
	"github.com/luca-patrignani/fairdeal/network"
)

// runPeers starts n loopback peers, runs body on each of them in its own
// goroutine and fails the test with the first error returned.
func runPeers(t *testing.T, n int, opts []Option, body func(s *Session) error) {
	t.Helper()
	listeners, addresses := network.CreateListeners(n)
	fatal := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			peer := network.NewPeer(i, addresses, listeners[i], 30*time.Second)
			c, err := cardcipher.NewECIES("Ed25519")
			if err != nil {
				fatal <- err
				return
			}
			s, err := New(peer, c, opts...)
			if err != nil {
				fatal <- errors.Join(err, peer.Close())
				return
			}
			if err := s.ExchangeKeys(); err != nil {
				fatal <- fmt.Errorf("from peer %d: %w", i, errors.Join(err, s.Close()))
				return
			}
			if err := body(s); err != nil {
				fatal <- fmt.Errorf("from peer %d: %w", i, errors.Join(err, s.Close()))
				return
			}
			fatal <- s.Close()
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-fatal; err != nil {
			t.Fatal(err)
		}
	}
}

func TestExchangeKeys(t *testing.T) {
	n := 3
	ids := make(chan string, n)
	runPeers(t, n, nil, func(s *Session) error {
		if len(s.Peers()) != n {
			return fmt.Errorf("expected %d peers, got %d", n, len(s.Peers()))
		}
		for rank, info := range s.Peers() {
			if len(info.Key) == 0 || len(info.Identity) == 0 {
				return fmt.Errorf("missing keys of peer %d", rank)
			}
		}
		if err := s.Ledger().Verify(); err != nil {
			return err
		}
		ids <- s.ID
		return nil
	})
	close(ids)
	first := <-ids
	for id := range ids {
		if id != first {
			t.Fatalf("peers disagree on the session: %s and %s", first, id)
		}
	}
}

func TestDealIndex(t *testing.T) {
	n := 3
	deals := make(chan []dealer.Deal, n)
	opts := []Option{WithDeckSize(8)}
	runPeers(t, n, opts, func(s *Session) error {
		var out []dealer.Deal
		for i := 0; i < 8; i++ {
			d, err := s.DealIndex()
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		deals <- out
		return nil
	})
	close(deals)
	first := <-deals
	for other := range deals {
		if !slices.Equal(first, other) {
			t.Fatalf("peers disagree: %v and %v", first, other)
		}
	}
	var indices []int
	for _, d := range first {
		indices = append(indices, d.Index)
	}
	slices.Sort(indices)
	if !slices.Equal(indices, []int{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("expected every index once, got %v", indices)
	}
}

func TestDealIndexBatch(t *testing.T) {
	n := 2
	deals := make(chan []int, n)
	opts := []Option{WithDeckSize(4), WithBatch(3)}
	runPeers(t, n, opts, func(s *Session) error {
		var out []int
		for i := 0; i < 5; i++ {
			d, err := s.DealIndex()
			if err != nil {
				return err
			}
			out = append(out, d.Index)
		}
		deals <- out
		return nil
	})
	close(deals)
	first := <-deals
	if second := <-deals; !slices.Equal(first, second) {
		t.Fatalf("peers disagree: %v and %v", first, second)
	}
}

func TestRevealWholeDeck(t *testing.T) {
	n := 2
	results := make(chan []int, n)
	opts := []Option{WithDeckSize(4)}
	runPeers(t, n, opts, func(s *Session) error {
		if err := s.BuildDeck(1); err != nil {
			return err
		}
		var values []int
		for pos := 0; pos < 4; pos++ {
			res, err := s.Reveal(pos)
			if err != nil {
				return err
			}
			if res.Record.State != reveal.CrossVerified {
				return fmt.Errorf("position %d ended in %s", pos, res.Record.State)
			}
			values = append(values, res.Value)
		}
		if _, err := s.Reveal(0); !errors.Is(err, reveal.ErrDeckExhausted) {
			return fmt.Errorf("expected ErrDeckExhausted, got %v", err)
		}
		results <- values
		return s.Ledger().Verify()
	})
	close(results)
	first := <-results
	if second := <-results; !slices.Equal(first, second) {
		t.Fatalf("peers saw different cards: %v and %v", first, second)
	}
	slices.Sort(first)
	if !slices.Equal(first, []int{0, 1, 2, 3}) {
		t.Fatalf("expected values {0, 1, 2, 3}, got %v", first)
	}
}

func TestRevealNextAcrossEpochs(t *testing.T) {
	n := 3
	opts := []Option{WithDeckSize(4)}
	runPeers(t, n, opts, func(s *Session) error {
		if err := s.BuildDeck(2); err != nil {
			return err
		}
		var positions []int
		for i := 0; i < 4; i++ {
			res, err := s.RevealNext()
			if err != nil {
				return err
			}
			if res.Deal == nil || res.Deal.Index != res.Position {
				return fmt.Errorf("reveal %d has no matching deal: %+v", i, res)
			}
			positions = append(positions, res.Position)
		}
		slices.Sort(positions)
		if !slices.Equal(positions, []int{0, 1, 2, 3}) {
			return fmt.Errorf("expected every position once, got %v", positions)
		}
		if _, err := s.RevealNext(); !errors.Is(err, reveal.ErrDeckExhausted) {
			return fmt.Errorf("expected ErrDeckExhausted, got %v", err)
		}
		if err := s.BuildDeck(0); err != nil {
			return err
		}
		res, err := s.RevealNext()
		if err != nil {
			return err
		}
		if res.Epoch != 1 {
			return fmt.Errorf("expected epoch 1, got %d", res.Epoch)
		}
		return nil
	})
}

// TestTamperedStage makes the opening stage corrupt one card it sends. The
// corrupted position must abort on every peer and the others must reveal.
func TestTamperedStage(t *testing.T) {
	n := 2
	aborted := make(chan []int, n)
	opts := []Option{WithDeckSize(4)}
	runPeers(t, n, opts, func(s *Session) error {
		if s.Rank() == 1 {
			s.tamper = func(cards []mask.MaskedCard) {
				cards[1].Ciphertext[0] ^= 0x01
			}
		}
		// Recipient 0: peer 1 opens the chain.
		if err := s.BuildDeck(0); err != nil {
			return err
		}
		var failed []int
		for pos := 0; pos < 4; pos++ {
			_, err := s.Reveal(pos)
			if err == nil {
				continue
			}
			var abort *reveal.AbortError
			if !errors.As(err, &abort) {
				return fmt.Errorf("position %d: expected an abort, got %v", pos, err)
			}
			var integrity *mask.IntegrityError
			if s.Rank() == 0 && !errors.As(err, &integrity) {
				return fmt.Errorf("position %d: recipient expected an integrity error, got %v", pos, err)
			}
			failed = append(failed, pos)
		}
		aborted <- failed
		return nil
	})
	close(aborted)
	first := <-aborted
	if second := <-aborted; !slices.Equal(first, second) {
		t.Fatalf("peers aborted different positions: %v and %v", first, second)
	}
	if len(first) != 1 {
		t.Fatalf("expected exactly one aborted position, got %v", first)
	}
}

func TestStageOrder(t *testing.T) {
	if got := stageOrder(3, 0); !slices.Equal(got, []int{1, 2, 0}) {
		t.Fatalf("unexpected order %v", got)
	}
	if got := stageOrder(2, 1); !slices.Equal(got, []int{0, 1}) {
		t.Fatalf("unexpected order %v", got)
	}
}
