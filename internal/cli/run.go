package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/relab/benor/consensus"
	"github.com/relab/benor/internal/cluster"
	"github.com/relab/benor/internal/config"
	"github.com/relab/benor/internal/profiling"
	"github.com/relab/benor/logging"
	"github.com/relab/benor/metrics"
)

// MeasurementsFile is the name of the file in the output directory that measurements are written to.
const MeasurementsFile = "measurements.json"

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run consensus among nodes on localhost.",
	Long: `The run command starts a network of nodes on localhost, each behind its own HTTP server,
and runs Ben-Or consensus until every non-faulty node has decided or given up.
Node i listens on base-port+i, or on a free port if base-port is 0.
The final state of each node is printed as a table.`,
	Run: func(_ *cobra.Command, _ []string) {
		checkf("%v", runLocal(os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("nodes", 4, "number of nodes (N)")
	runCmd.Flags().Int("faulty", 1, "number of nodes that may be faulty (F)")
	runCmd.Flags().IntSlice("faulty-ids", nil, "IDs of the nodes to start as faulty")
	runCmd.Flags().StringSlice("values", nil, "initial value of each node (defaults to alternating 0 and 1)")
	runCmd.Flags().Int("base-port", 0, "port of node 0 (0 picks free ports)")
	runCmd.Flags().Uint64("max-rounds", 0, "maximum number of rounds per node (0 means unbounded)")
	runCmd.Flags().Uint64("lookahead", uint64(consensus.DefaultLookahead), "number of future rounds each node buffers messages for")
	runCmd.Flags().Duration("settle-delay", 200*time.Millisecond, "delay before a node checks whether every node has decided")
	runCmd.Flags().Duration("timeout", time.Minute, "maximum duration of the run")
	runCmd.Flags().Int64("seed", 0, "coin seed (defaults to current timestamp)")
	runCmd.Flags().Float64("send-rate", 0, "messages per second each node may send (0 means unlimited)")

	runCmd.Flags().String("output", "", "the directory to save measurements and profiles to (disabled by default)")
	runCmd.Flags().Bool("cpu-profile", false, "enable cpu profiling")
	runCmd.Flags().Bool("mem-profile", false, "enable memory profiling")
	runCmd.Flags().Bool("trace", false, "enable trace")
	runCmd.Flags().Bool("fgprof-profile", false, "enable fgprof")

	cobra.CheckErr(viper.BindPFlags(runCmd.Flags()))
}

// runLocal runs a cluster configured through viper and prints the final state of every node to w.
// Measurements and profiles are written out even if the run or the shutdown fails.
func runLocal(w io.Writer) (err error) {
	cfg, err := config.NewViper()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	stopProfilers, err := startProfiling(cfg)
	if err != nil {
		return fmt.Errorf("failed to start profilers: %w", err)
	}
	defer func() {
		if stopErr := stopProfilers(); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to stop profilers: %w", stopErr))
		}
	}()

	logger, closeLogger, err := measurementLogger(cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to create measurement logger: %w", err)
	}
	defer func() {
		if closeErr := closeLogger(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close measurement logger: %w", closeErr))
		}
	}()

	c, err := cluster.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create cluster: %w", err)
	}

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}
	states, runErr := c.Run(ctx)
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if closeErr := c.Close(closeCtx); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close cluster: %w", closeErr))
	}
	if runErr != nil {
		return multierr.Append(err, fmt.Errorf("run failed: %w", runErr))
	}

	printStates(w, cfg, states)
	printSummary(w, c.Recorder().Summary())
	return err
}

func startProfiling(cfg *config.Config) (stop func() error, err error) {
	if cfg.Output == "" {
		return func() error { return nil }, nil
	}
	return profiling.Start(cfg.Output, profiling.Profiles{
		CPU:    cfg.CpuProfile,
		Memory: cfg.MemProfile,
		Trace:  cfg.Trace,
		Fgprof: cfg.FgProfProfile,
	})
}

// measurementLogger returns a logger writing to the measurements file in output.
// Without an output directory, measurements are discarded.
func measurementLogger(output string) (logger metrics.Logger, closeLogger func() error, err error) {
	if output == "" {
		return metrics.NopLogger(), func() error { return nil }, nil
	}
	return measurementFile(filepath.Join(output, MeasurementsFile))
}

// measurementFile returns a logger writing measurements to the named file.
func measurementFile(name string) (logger metrics.Logger, closeLogger func() error, err error) {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}
	wr := bufio.NewWriter(f)
	logger, err = metrics.NewJSONLogger(wr, logging.New("metrics"))
	if err != nil {
		return nil, nil, multierr.Append(err, f.Close())
	}
	return logger, func() error {
		if err := logger.Close(); err != nil {
			return multierr.Append(err, f.Close())
		}
		if err := wr.Flush(); err != nil {
			return multierr.Append(err, f.Close())
		}
		return f.Close()
	}, nil
}

func checkf(format string, args ...any) {
	for _, arg := range args {
		if err, _ := arg.(error); err != nil {
			log.Fatalf(format, args...)
		}
	}
}
