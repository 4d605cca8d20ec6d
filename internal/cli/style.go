package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/pterm/pterm"

	"github.com/relab/benor"
	"github.com/relab/benor/internal/config"
	"github.com/relab/benor/metrics"
)

// printStates writes a table with the final state of every node.
func printStates(w io.Writer, cfg *config.Config, states []benor.NodeState) {
	data := pterm.TableData{{"Node", "Initial", "Status", "Value", "Round"}}
	for i, state := range states {
		id := benor.ID(i)
		initial := "-"
		if i < len(cfg.Values) {
			initial = cfg.Values[i].String()
		}
		data = append(data, []string{id.String(), initial, status(cfg, id, state), value(state), round(state)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintln(w, table)
}

func status(cfg *config.Config, id benor.ID, state benor.NodeState) string {
	switch {
	case cfg.IsFaulty(id):
		return pterm.Gray("faulty")
	case state.IsDecided():
		return pterm.LightGreen("decided")
	case state.K != nil && state.X == nil:
		return pterm.LightRed("gave up")
	}
	return pterm.LightYellow("undecided")
}

func value(state benor.NodeState) string {
	if state.X == nil {
		return "-"
	}
	return state.X.String()
}

func round(state benor.NodeState) string {
	if state.K == nil {
		return "-"
	}
	return fmt.Sprint(*state.K)
}

// printSummary writes the decision statistics of a run in a box.
func printSummary(w io.Writer, s metrics.Summary) {
	text := pterm.Sprintfln("decisions:  %d", s.Decisions)
	if s.Decisions > 0 {
		text += pterm.Sprintfln("mean round: %.2f", s.MeanRound)
	}
	if !math.IsNaN(s.RoundVariance) && s.Decisions > 1 {
		text += pterm.Sprintfln("variance:   %.2f", s.RoundVariance)
	}
	text += pterm.Sprintf("coin flips: %d", s.CoinFlips)
	fmt.Fprintln(w, pterm.DefaultBox.WithTitle(pterm.LightCyan("|SUMMARY|")).WithTitleTopCenter().Sprint(text))
}
