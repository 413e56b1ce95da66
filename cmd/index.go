package main

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/luca-patrignani/fairdeal/dealer"
	"github.com/luca-patrignani/fairdeal/session"
)

func newIndexCmd(a *app) *cobra.Command {
	var players, count int
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Agree on card indices with commitments among local peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			deals, err := a.dealIndices(players, count)
			if err != nil {
				return err
			}
			return dealTable(deals).Render()
		},
	}
	cmd.Flags().IntVar(&players, "players", 3, "number of local peers")
	cmd.Flags().IntVar(&count, "count", 10, "indices to deal")
	return cmd
}

// dealIndices runs count index agreements among players local peers and
// checks that every peer saw the same deals.
func (a *app) dealIndices(players, count int) ([]dealer.Deal, error) {
	var mu sync.Mutex
	seen := make(map[int][]dealer.Deal, players)
	err := a.runLocal(players, func(s *session.Session) error {
		var deals []dealer.Deal
		for range count {
			d, err := s.DealIndex()
			if err != nil {
				return err
			}
			deals = append(deals, d)
		}
		mu.Lock()
		seen[s.Rank()] = deals
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	for rank, deals := range seen {
		if !slices.Equal(deals, seen[0]) {
			return nil, fmt.Errorf("peer %d dealt %v, peer 0 dealt %v", rank, deals, seen[0])
		}
	}
	return seen[0], nil
}

func dealTable(deals []dealer.Deal) *pterm.TablePrinter {
	data := pterm.TableData{{"#", "Index", "Epoch", "Step", "Probes"}}
	for i, d := range deals {
		data = append(data, []string{
			fmt.Sprint(i),
			fmt.Sprint(d.Index),
			fmt.Sprint(d.Epoch),
			fmt.Sprint(d.Step),
			fmt.Sprint(d.Probes),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data)
}
