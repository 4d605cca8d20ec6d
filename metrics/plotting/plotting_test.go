package plotting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/plot/plotter"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
	"github.com/relab/benor/logging"
	"github.com/relab/benor/metrics"
	"github.com/relab/benor/metrics/plotting"
)

func record(t *testing.T, events ...any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger, err := metrics.NewJSONLogger(&buf, logging.New("test"))
	if err != nil {
		t.Fatal(err)
	}
	rec := metrics.NewRecorder(logger)
	for _, event := range events {
		rec.HandleEvent(event)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestReadAndPlot(t *testing.T) {
	buf := record(t,
		consensus.RoundEvent{ID: 0, Round: 2, Estimate: benor.One},
		consensus.RoundEvent{ID: 1, Round: 2, Estimate: benor.Zero, CoinFlipped: true},
		consensus.DecideEvent{ID: 0, Round: 2, Value: benor.One},
		consensus.RoundEvent{ID: 0, Round: 3, Estimate: benor.One},
		consensus.RoundEvent{ID: 1, Round: 3, Estimate: benor.One},
		consensus.DecideEvent{ID: 1, Round: 3, Value: benor.One},
		consensus.HaltEvent{ID: 1},
	)

	rounds := plotting.NewDecisionRoundsPlot()
	timeline := plotting.NewRoundTimelinePlot()
	if err := plotting.NewReader(buf, rounds, timeline).ReadAll(); err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}

	ids, values := rounds.Rounds()
	if diff := cmp.Diff([]benor.ID{0, 1}, ids); diff != "" {
		t.Errorf("decided nodes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(plotter.Values{2, 3}, values); diff != "" {
		t.Errorf("decision rounds mismatch (-want +got):\n%s", diff)
	}

	lines := timeline.Timeline()
	if len(lines) != 2 {
		t.Fatalf("timeline has %d nodes, want 2", len(lines))
	}
	for id, xys := range lines {
		if len(xys) != 2 || xys[0].Y != 2 || xys[1].Y != 3 {
			t.Errorf("node %d timeline = %v, want rounds 2 and 3", id, xys)
		}
		if xys[0].X < 0 || xys[1].X < xys[0].X {
			t.Errorf("node %d timeline is not ordered in time: %v", id, xys)
		}
	}

	dir := t.TempDir()
	for name, plot := range map[string]interface{ Plot(string) error }{
		"rounds.png":   rounds,
		"timeline.png": timeline,
	} {
		filename := filepath.Join(dir, name)
		if err := plot.Plot(filename); err != nil {
			t.Fatalf("Plot(%s) failed: %v", name, err)
		}
		if info, err := os.Stat(filename); err != nil || info.Size() == 0 {
			t.Errorf("%s was not written: %v", name, err)
		}
	}
}

func TestPlotWithoutData(t *testing.T) {
	rounds := plotting.NewDecisionRoundsPlot()
	if err := rounds.Plot(filepath.Join(t.TempDir(), "rounds.png")); err == nil {
		t.Error("Plot() succeeded without decisions")
	}
}

func TestReaderRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "NotAnArray___", input: `{"event": "decide"}`},
		{name: "NotAnAny_____", input: `[{"event": "decide"}]`},
		{name: "Unterminated_", input: `[`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := plotting.NewReader(strings.NewReader(tt.input)).ReadAll(); err == nil {
				t.Error("ReadAll() succeeded")
			}
		})
	}
}
