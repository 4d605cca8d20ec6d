package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
	"github.com/relab/benor/internal/config"
	"github.com/relab/benor/metrics"
	"github.com/relab/benor/simnet"
)

var (
	simNodes     int
	simFaulty    int
	simFaultyIDs []int
	simValues    []string
	simRuns      int
	simSeed      int64
	simTicks     int
	simMaxRounds uint64
	simOutput    string
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run seeded executions on a simulated network.",
	Long: `The sim command runs consensus on an in-memory network where the delivery order
of messages is chosen by a seeded random source. Each run uses the next seed,
so a run can be reproduced by its seed. Runs that violate agreement are reported.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return simulate(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(simCmd)

	simCmd.Flags().IntVar(&simNodes, "nodes", 4, "number of nodes (N)")
	simCmd.Flags().IntVar(&simFaulty, "faulty", 1, "number of nodes that may be faulty (F)")
	simCmd.Flags().IntSliceVar(&simFaultyIDs, "faulty-ids", nil, "IDs of the nodes to start as faulty")
	simCmd.Flags().StringSliceVar(&simValues, "values", nil, "initial value of each node (defaults to alternating 0 and 1)")
	simCmd.Flags().IntVar(&simRuns, "runs", 10, "number of runs")
	simCmd.Flags().Int64Var(&simSeed, "seed", 0, "seed of the first run (defaults to current timestamp)")
	simCmd.Flags().IntVar(&simTicks, "ticks", 10000, "maximum number of delivery ticks per run")
	simCmd.Flags().Uint64Var(&simMaxRounds, "max-rounds", 0, "maximum number of rounds per node (0 means unbounded)")
	simCmd.Flags().StringVar(&simOutput, "output", "", "file to write measurements to (disabled by default)")
}

// simResult is the outcome of a single simulated run.
type simResult struct {
	seed     int64
	ticks    int
	value    benor.Value
	decided  int
	maxRound benor.Round
	err      error
}

func simulate(w io.Writer) (err error) {
	cfg, err := simConfig()
	if err != nil {
		return err
	}
	if simSeed == 0 {
		simSeed = time.Now().UnixNano()
	}

	logger := metrics.NopLogger()
	if simOutput != "" {
		var closeLogger func() error
		logger, closeLogger, err = measurementFile(simOutput)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := closeLogger(); err == nil {
				err = cerr
			}
		}()
	}
	recorder := metrics.NewRecorder(logger)

	data := pterm.TableData{{"Seed", "Ticks", "Decided", "Value", "Last round", "Result"}}
	var failures int
	for i := 0; i < simRuns; i++ {
		res := simulateRun(cfg, simSeed+int64(i), recorder)
		result := pterm.LightGreen("ok")
		if res.err != nil {
			failures++
			result = pterm.LightRed(res.err.Error())
		}
		data = append(data, []string{
			fmt.Sprint(res.seed),
			fmt.Sprint(res.ticks),
			fmt.Sprintf("%d/%d", res.decided, cfg.Nodes-len(cfg.FaultyIDs)),
			res.value.String(),
			fmt.Sprint(res.maxRound),
			result,
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)
	printSummary(w, recorder.Summary())
	if failures > 0 {
		return fmt.Errorf("%d of %d runs failed", failures, simRuns)
	}
	return nil
}

func simConfig() (*config.Config, error) {
	cfg := &config.Config{
		Nodes:     simNodes,
		Faulty:    simFaulty,
		MaxRounds: benor.Round(simMaxRounds),
	}
	for _, id := range simFaultyIDs {
		if id < 0 {
			return nil, fmt.Errorf("invalid faulty node ID %d", id)
		}
		cfg.FaultyIDs = append(cfg.FaultyIDs, benor.ID(id))
	}
	if len(simValues) > 0 {
		values, err := config.ParseValues(simValues)
		if err != nil {
			return nil, err
		}
		cfg.Values = values
	} else {
		cfg.Values = config.AlternatingValues(simNodes)
	}
	return cfg, cfg.Validate()
}

func simulateRun(cfg *config.Config, seed int64, recorder *metrics.Recorder) simResult {
	res := simResult{seed: seed, value: benor.Undecided}
	network, err := simnet.New(simnet.Config{
		Values:    cfg.Values,
		F:         cfg.Faulty,
		Faulty:    cfg.FaultyIDs,
		Seed:      seed,
		MaxRounds: cfg.MaxRounds,
		Options:   []consensus.Option{consensus.WithEventHandler(recorder.HandleEvent)},
	})
	if err != nil {
		res.err = err
		return res
	}
	res.ticks, res.err = network.Run(context.Background(), simTicks)

	for i, state := range network.States() {
		if state.K != nil && *state.K > res.maxRound {
			res.maxRound = *state.K
		}
		if !state.IsDecided() {
			continue
		}
		res.decided++
		if res.value == benor.Undecided {
			res.value = *state.X
		} else if res.value != *state.X && res.err == nil {
			res.err = fmt.Errorf("node %d decided %v, others decided %v", i, *state.X, res.value)
		}
	}
	return res
}
