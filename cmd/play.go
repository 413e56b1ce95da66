package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/fairdeal/discovery"
	"github.com/luca-patrignani/fairdeal/domain/reveal"
	"github.com/luca-patrignani/fairdeal/network"
	"github.com/luca-patrignani/fairdeal/session"
)

func newPlayCmd(a *app) *cobra.Command {
	var hands, boardSize, players int
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a table and reveal community cards with the other peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			banner()
			return a.play(cmd.Context(), players, hands, boardSize)
		},
	}
	cmd.Flags().IntVar(&hands, "hands", 1, "hands to play, each one on a freshly shuffled deck")
	cmd.Flags().IntVar(&boardSize, "board", 5, "community cards revealed per hand")
	cmd.Flags().IntVar(&players, "players", 2, "peers to wait for when discovering")
	return cmd
}

func (a *app) play(ctx context.Context, players, hands, boardSize int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Listen, err)
	}
	local := l.Addr().String()
	pterm.Info.Printfln("Listening on %s", local)
	if tcp, ok := l.(*net.TCPListener); ok {
		if subnet, err := subnetOfListener(tcp); err == nil {
			pterm.Info.Printfln("Peers in %s can be given by their last octets only", subnet.String())
		}
	}

	addresses, err := a.gatherPeers(ctx, local, players)
	if err != nil {
		return errors.Join(err, l.Close())
	}
	rank, ranked, err := assignRanks(addresses, local)
	if err != nil {
		return errors.Join(err, l.Close())
	}
	opts := []network.Option{network.WithTimeout(a.cfg.Timeout), network.WithLogger(a.logger)}
	if a.cfg.TLS {
		cert, pool, err := loadTLS(a.cfg.TLSCert, a.cfg.TLSKey, a.cfg.TLSCA)
		if err != nil {
			return errors.Join(err, l.Close())
		}
		opts = append(opts, network.WithTLS(cert, pool))
	}
	peer := network.NewPeerWithOptions(rank, ranked, l, opts...)
	pterm.Info.Printfln("Your rank is %d", rank)

	c, err := a.cfg.NewCipher()
	if err != nil {
		return errors.Join(err, peer.Close())
	}
	s, err := session.New(peer, c, a.sessionOptions()...)
	if err != nil {
		return errors.Join(err, peer.Close())
	}
	defer s.Close()

	spinner, _ := pterm.DefaultSpinner.Start("Exchanging keys with the other players ...")
	if err := s.ExchangeKeys(); err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success(fmt.Sprintf("Connected with %d players", len(ranked)-1))

	for hand := range hands {
		if err := a.playHand(s, hand, boardSize); err != nil {
			return err
		}
	}
	if err := s.Ledger().Verify(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	records, err := s.Protocol().Records()
	if err != nil {
		return err
	}
	return revealTable(records).Render()
}

// playHand shuffles a deck for the hand and reveals the board. Aborted
// reveals are shown and skipped, their positions stay burned.
func (a *app) playHand(s *session.Session, hand, boardSize int) error {
	n := len(s.Peers())
	spinner, _ := pterm.DefaultSpinner.Start("Shuffling the cards ...")
	if err := s.BuildDeck(hand % n); err != nil {
		spinner.Fail()
		return err
	}
	spinner.Success()

	var board []int
	for len(board) < boardSize {
		res, err := s.RevealNext()
		var abort *reveal.AbortError
		switch {
		case errors.Is(err, reveal.ErrDeckExhausted):
			pterm.Warning.Println("The deck is exhausted")
			return nil
		case errors.As(err, &abort):
			a.logger.Warn("reveal aborted", "position", abort.Position, "peer", abort.Peer, "err", abort.Err)
			printHand(hand, board, boardSize, resultPanel(res, err))
			continue
		case err != nil:
			return err
		}
		board = append(board, res.Value)
		printHand(hand, board, boardSize, resultPanel(res, nil))
	}
	return nil
}

// gatherPeers returns the addresses of every peer, local included, either
// from discovery or from the configured peer list.
func (a *app) gatherPeers(ctx context.Context, local string, players int) ([]string, error) {
	if !a.cfg.Discover {
		return resolvePeers(local, a.cfg.Peers)
	}
	d, err := discovery.NewWithOptions(
		discovery.Entry{Address: local, Table: a.cfg.Table},
		discovery.WithAttempts(uint(a.cfg.Timeout.Seconds())+1),
		discovery.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Looking for %d players at table %s ...", players, a.cfg.Table))
	addresses, err := d.Gather(ctx, players)
	if err != nil {
		spinner.Fail()
		return nil, errors.Join(err, d.Close())
	}
	spinner.Success()
	// The others may still be scanning.
	go func() {
		<-time.After(a.cfg.Timeout)
		_ = d.Close()
	}()
	return addresses, nil
}

func loadTLS(certFile, keyFile, caFile string) (tls.Certificate, *x509.CertPool, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	bundle, err := os.ReadFile(caFile)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	pool, err := network.CertPool(bundle)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("%s: %w", caFile, err)
	}
	return cert, pool, nil
}
