package main

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/fairdeal/domain/cards"
	"github.com/luca-patrignani/fairdeal/domain/reveal"
	"github.com/luca-patrignani/fairdeal/session"
)

func revealTable(records []reveal.Record) *pterm.TablePrinter {
	data := pterm.TableData{{"Epoch", "Position", "Card", "State", "Verified by"}}
	for _, r := range records {
		card := "-"
		if r.State == reveal.CrossVerified {
			card = cards.Describe(r.PlaintextClaim)
		}
		state := pterm.LightGreen(r.State.String())
		if r.State == reveal.Aborted {
			state = pterm.LightRed(r.State.String())
		}
		data = append(data, []string{
			fmt.Sprint(r.Epoch),
			fmt.Sprint(r.Position),
			card,
			state,
			fmt.Sprint(r.VerifiedBy),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data)
}

func boardPanel(hand int, board []int, size int) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	title := pterm.LightYellow(fmt.Sprintf("|HAND %d|", hand))
	return pterm.Panel{Data: pbox.WithTitle(title).WithTitleTopCenter().Sprint(pterm.BgGreen.Sprint(cards.Board(board, size)))}
}

func resultPanel(res session.Result, err error) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4)
	if err != nil {
		return pterm.Panel{Data: pbox.WithTitle(pterm.LightRed("|ABORTED|")).Sprintf("position %d\n%s", res.Position, err)}
	}
	info := fmt.Sprintf("position %d\n%s", res.Position, cards.Describe(res.Value))
	if res.Deal != nil {
		info += fmt.Sprintf("\nstep %d, %d probes", res.Deal.Step, res.Deal.Probes)
	}
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightGreen("|REVEALED|")).Sprint(info)}
}

func printHand(hand int, board []int, size int, last pterm.Panel) {
	_ = pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{boardPanel(hand, board, size)},
		{last},
	}).Render()
}
