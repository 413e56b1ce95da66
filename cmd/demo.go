package main

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/fairdeal/domain/deck"
	"github.com/luca-patrignani/fairdeal/domain/reveal"
	"github.com/luca-patrignani/fairdeal/mask"
)

func newDemoCmd(a *app) *cobra.Command {
	var players, tamper int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Shuffle and reveal a whole deck in process, optionally tampering with one card",
		RunE: func(cmd *cobra.Command, args []string) error {
			banner()
			rounds, err := a.demo(players, tamper)
			if err != nil {
				return err
			}
			return revealTable(rounds).Render()
		},
	}
	cmd.Flags().IntVar(&players, "players", 3, "number of shuffling stages")
	cmd.Flags().IntVar(&tamper, "tamper", -1, "position whose card the last stage corrupts, -1 for none")
	return cmd
}

// demo shuffles a deck with players stages, all run locally, and reveals
// every position as the recipient would. When tamper is a valid position,
// the card the last stage hands over at that position gets one bit flipped.
func (a *app) demo(players, tamper int) ([]reveal.Record, error) {
	if players < 2 {
		return nil, fmt.Errorf("at least 2 players are needed, got %d", players)
	}
	c, err := a.cfg.NewCipher()
	if err != nil {
		return nil, err
	}
	kp, err := c.GenerateKey()
	if err != nil {
		return nil, err
	}
	order := stageOrder(players)
	local, err := deck.New(a.cfg.DeckSize, kp.Public, order)
	if err != nil {
		return nil, err
	}
	view, err := deck.New(a.cfg.DeckSize, kp.Public, order)
	if err != nil {
		return nil, err
	}
	records := make(map[int]*deck.Record, players)
	for _, rank := range order {
		rec, err := deck.Stage{Rank: rank, Cipher: c}.Apply(local)
		if err != nil {
			return nil, err
		}
		records[rank] = rec
		sent := local.Cards()
		if rank == order[len(order)-1] && tamper >= 0 && tamper < len(sent) {
			sent[tamper].Ciphertext[0] ^= 1
			a.logger.Warn("tampering with a card", "stage", rank, "position", tamper)
		}
		if err := view.Accept(rank, sent); err != nil {
			return nil, err
		}
	}
	if err := view.Seal(); err != nil {
		return nil, err
	}

	recipient := order[len(order)-1]
	p, err := reveal.New(view,
		reveal.WithRank(recipient),
		reveal.WithSteps(a.cfg.Steps...),
		reveal.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	for position := range a.cfg.DeckSize {
		round, err := p.Reveal(position)
		if err != nil {
			return nil, err
		}
		for {
			_, pos, rank, ok := round.Pending()
			if !ok {
				break
			}
			d, err := records[rank].Disclose(pos)
			if err != nil {
				return nil, err
			}
			if round.Disclose(d) != nil {
				break
			}
		}
		if round.State() == reveal.PadDisclosed {
			if _, err := round.Decrypt(c, kp); err == nil {
				for _, rank := range order {
					if round.CrossVerify(records[rank]) != nil {
						break
					}
				}
			}
		}
		var integrity *mask.IntegrityError
		if errors.As(round.Err(), &integrity) {
			pterm.Warning.Printfln("position %d: %s", position, integrity)
		}
	}
	return p.Records()
}

// stageOrder lists the ranks of n peers in shuffle order, the recipient
// being the last one.
func stageOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
