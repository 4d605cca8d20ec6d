package plotting

import (
	"fmt"
	"image/color"
	"sort"
	"time"

	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/relab/benor"
	"github.com/relab/benor/metrics"
)

// DecisionRoundsPlot plots the round in which each node decided.
type DecisionRoundsPlot struct {
	rounds map[benor.ID]benor.Round
}

// NewDecisionRoundsPlot returns an empty plot.
func NewDecisionRoundsPlot() *DecisionRoundsPlot {
	return &DecisionRoundsPlot{rounds: make(map[benor.ID]benor.Round)}
}

// Add records decide measurements and ignores everything else.
func (p *DecisionRoundsPlot) Add(m Measurement) {
	if m.Event != metrics.EventDecide {
		return
	}
	p.rounds[m.Node] = m.Round
}

// Rounds returns the IDs of the nodes that decided, in sorted order, and the round each of them decided in.
func (p *DecisionRoundsPlot) Rounds() ([]benor.ID, plotter.Values) {
	ids := make([]benor.ID, 0, len(p.rounds))
	for id := range p.rounds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	values := make(plotter.Values, len(ids))
	for i, id := range ids {
		values[i] = float64(p.rounds[id])
	}
	return ids, values
}

// Plot writes a bar chart of decision rounds to filename.
// The image format is chosen from the file extension.
func (p *DecisionRoundsPlot) Plot(filename string) error {
	ids, values := p.Rounds()
	if len(ids) == 0 {
		return fmt.Errorf("no decisions to plot")
	}

	plt := plot.New()
	plt.Title.Text = "Decision round per node"
	plt.X.Label.Text = "Node"
	plt.Y.Label.Text = "Round"
	plt.Y.Min = 0
	plt.Y.Tick.Marker = hplot.Ticks{N: 10}
	plt.Add(grid())

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("failed to create bar chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	plt.Add(bars)

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	plt.NominalX(names...)

	if err := plt.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// RoundTimelinePlot plots the round of every node over time.
type RoundTimelinePlot struct {
	start  time.Time
	times  map[benor.ID][]time.Time
	rounds map[benor.ID][]benor.Round
}

// NewRoundTimelinePlot returns an empty plot.
func NewRoundTimelinePlot() *RoundTimelinePlot {
	return &RoundTimelinePlot{
		times:  make(map[benor.ID][]time.Time),
		rounds: make(map[benor.ID][]benor.Round),
	}
}

// Add records round measurements and ignores everything else.
func (p *RoundTimelinePlot) Add(m Measurement) {
	if m.Event != metrics.EventRound || m.Timestamp == nil {
		return
	}
	t := m.Timestamp.AsTime()
	if p.start.IsZero() || t.Before(p.start) {
		p.start = t
	}
	p.times[m.Node] = append(p.times[m.Node], t)
	p.rounds[m.Node] = append(p.rounds[m.Node], m.Round)
}

// Timeline returns, for each node, the time in seconds since the first measurement
// at which the node entered each of its rounds.
func (p *RoundTimelinePlot) Timeline() map[benor.ID]plotter.XYs {
	lines := make(map[benor.ID]plotter.XYs, len(p.times))
	for id, times := range p.times {
		xys := make(plotter.XYs, len(times))
		for i, t := range times {
			xys[i].X = t.Sub(p.start).Seconds()
			xys[i].Y = float64(p.rounds[id][i])
		}
		sort.SliceStable(xys, func(i, j int) bool { return xys[i].X < xys[j].X })
		lines[id] = xys
	}
	return lines
}

// Plot writes a line plot of rounds over time to filename.
func (p *RoundTimelinePlot) Plot(filename string) error {
	lines := p.Timeline()
	if len(lines) == 0 {
		return fmt.Errorf("no rounds to plot")
	}

	plt := plot.New()
	plt.Title.Text = "Round progress"
	plt.X.Label.Text = "Time (seconds)"
	plt.X.Tick.Marker = hplot.Ticks{N: 10}
	plt.Y.Label.Text = "Round"
	plt.Y.Tick.Marker = hplot.Ticks{N: 10}
	plt.Add(grid())

	ids := make([]benor.ID, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var series []any
	for _, id := range ids {
		series = append(series, fmt.Sprintf("node %d", id), lines[id])
	}
	if err := plotutil.AddLinePoints(plt, series...); err != nil {
		return fmt.Errorf("failed to add line plot: %w", err)
	}

	if err := plt.Save(6*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

func grid() *plotter.Grid {
	grid := plotter.NewGrid()
	grid.Horizontal.Color = color.Gray{Y: 200}
	grid.Horizontal.Dashes = plotutil.Dashes(2)
	grid.Vertical.Color = color.Gray{Y: 200}
	grid.Vertical.Dashes = plotutil.Dashes(2)
	return grid
}
