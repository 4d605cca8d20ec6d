package metrics

import (
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
)

// Event names used in recorded measurements.
const (
	EventRound  = "round"
	EventDecide = "decide"
	EventGiveUp = "giveup"
	EventHalt   = "halt"
)

// Recorder logs the events of consensus nodes as structpb.Struct measurements
// and keeps statistics about the rounds in which nodes decided.
type Recorder struct {
	logger Logger
	now    func() time.Time

	mut       sync.Mutex
	decisions Welford
	coinFlips uint64
}

// NewRecorder returns a recorder that logs to logger.
func NewRecorder(logger Logger) *Recorder {
	return &Recorder{logger: logger, now: time.Now}
}

// HandleEvent records an event. It is a consensus.EventHandler and is safe for concurrent use.
func (r *Recorder) HandleEvent(event any) {
	var (
		name   string
		fields = make(map[string]any)
	)
	switch e := event.(type) {
	case consensus.RoundEvent:
		name = EventRound
		fields["node"] = float64(e.ID)
		fields["round"] = float64(e.Round)
		fields["value"] = valueField(e.Estimate)
		fields["coin"] = e.CoinFlipped
		if e.CoinFlipped {
			r.mut.Lock()
			r.coinFlips++
			r.mut.Unlock()
		}
	case consensus.DecideEvent:
		name = EventDecide
		fields["node"] = float64(e.ID)
		fields["round"] = float64(e.Round)
		fields["value"] = valueField(e.Value)
		r.mut.Lock()
		r.decisions.Update(float64(e.Round))
		r.mut.Unlock()
	case consensus.GiveUpEvent:
		name = EventGiveUp
		fields["node"] = float64(e.ID)
		fields["round"] = float64(e.Round)
	case consensus.HaltEvent:
		name = EventHalt
		fields["node"] = float64(e.ID)
	default:
		return
	}
	fields["event"] = name
	fields["timestamp"] = r.now().UTC().Format(time.RFC3339Nano)

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return
	}
	r.logger.Log(msg)
}

// Summary describes the decisions seen by a recorder.
type Summary struct {
	Decisions uint64
	// MeanRound and RoundVariance describe the rounds in which nodes decided.
	MeanRound     float64
	RoundVariance float64
	CoinFlips     uint64
}

// Summary returns statistics about the recorded events.
func (r *Recorder) Summary() Summary {
	r.mut.Lock()
	defer r.mut.Unlock()
	mean, variance, count := r.decisions.Get()
	return Summary{Decisions: count, MeanRound: mean, RoundVariance: variance, CoinFlips: r.coinFlips}
}

func valueField(v benor.Value) any {
	if v.IsBinary() {
		return float64(v)
	}
	return v.String()
}
