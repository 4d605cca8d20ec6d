package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/relab/benor/metrics/plotting"
)

var (
	plotInput    string
	plotOutput   string
	plotTimeline string
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot measurements recorded by a run.",
	Long: `The plot command reads the measurements written by 'benor run --output' and plots
the round in which each node decided. With --timeline, it also plots the round of
each node over time. The image format is chosen from the file extension.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return plot(plotInput, plotOutput, plotTimeline)
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)

	plotCmd.Flags().StringVar(&plotInput, "input", MeasurementsFile, "measurements file to read")
	plotCmd.Flags().StringVar(&plotOutput, "output", "rounds.png", "file to write the decision round plot to")
	plotCmd.Flags().StringVar(&plotTimeline, "timeline", "", "file to write the round timeline plot to (disabled by default)")
}

func plot(input, output, timeline string) (err error) {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	rounds := plotting.NewDecisionRoundsPlot()
	timelinePlot := plotting.NewRoundTimelinePlot()
	if err := plotting.NewReader(f, rounds, timelinePlot).ReadAll(); err != nil {
		return fmt.Errorf("failed to read measurements: %w", err)
	}
	if err := rounds.Plot(output); err != nil {
		return err
	}
	if timeline != "" {
		if err := timelinePlot.Plot(timeline); err != nil {
			return err
		}
	}
	return nil
}
