package metrics

import (
	"bytes"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
	"github.com/relab/benor/logging"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewJSONLogger(&buf, logging.New("test"))
	if err != nil {
		t.Fatal(err)
	}
	want := []map[string]any{
		{"event": "decide", "node": 1.0, "round": 2.0},
		{"event": "halt", "node": 0.0},
	}
	for _, fields := range want {
		msg, err := structpb.NewStruct(fields)
		if err != nil {
			t.Fatal(err)
		}
		logger.Log(msg)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("log is not a JSON array: %v\n%s", err, buf.String())
	}
	var got []map[string]any
	for _, b := range raw {
		var anyMsg anypb.Any
		if err := protojson.Unmarshal(b, &anyMsg); err != nil {
			t.Fatal(err)
		}
		msg, err := anyMsg.UnmarshalNew()
		if err != nil {
			t.Fatal(err)
		}
		s, ok := msg.(*structpb.Struct)
		if !ok {
			t.Fatalf("got %T, want *structpb.Struct", msg)
		}
		got = append(got, s.AsMap())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("logged messages mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONLoggerEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewJSONLogger(&buf, logging.New("test"))
	if err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil || len(raw) != 0 {
		t.Errorf("empty log = %q, want an empty JSON array", buf.String())
	}
}

type memLogger struct {
	mut  sync.Mutex
	msgs []proto.Message
}

func (l *memLogger) Log(msg proto.Message) {
	l.mut.Lock()
	defer l.mut.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *memLogger) Close() error { return nil }

func TestRecorder(t *testing.T) {
	logger := &memLogger{}
	rec := NewRecorder(logger)
	at := time.Date(2022, 4, 20, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return at }

	events := []any{
		consensus.RoundEvent{ID: 0, Round: 2, Estimate: benor.One, CoinFlipped: true},
		consensus.DecideEvent{ID: 0, Round: 2, Value: benor.One},
		consensus.DecideEvent{ID: 1, Round: 4, Value: benor.One},
		consensus.GiveUpEvent{ID: 2, Round: 5},
		consensus.HaltEvent{ID: 1},
		"not an event",
	}
	for _, event := range events {
		rec.HandleEvent(event)
	}

	ts := at.Format(time.RFC3339Nano)
	want := []map[string]any{
		{"event": EventRound, "node": 0.0, "round": 2.0, "value": 1.0, "coin": true, "timestamp": ts},
		{"event": EventDecide, "node": 0.0, "round": 2.0, "value": 1.0, "timestamp": ts},
		{"event": EventDecide, "node": 1.0, "round": 4.0, "value": 1.0, "timestamp": ts},
		{"event": EventGiveUp, "node": 2.0, "round": 5.0, "timestamp": ts},
		{"event": EventHalt, "node": 1.0, "timestamp": ts},
	}
	var got []map[string]any
	for _, msg := range logger.msgs {
		got = append(got, msg.(*structpb.Struct).AsMap())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recorded events mismatch (-want +got):\n%s", diff)
	}

	wantSummary := Summary{Decisions: 2, MeanRound: 3, RoundVariance: 2, CoinFlips: 1}
	if diff := cmp.Diff(wantSummary, rec.Summary()); diff != "" {
		t.Errorf("Summary() mismatch (-want +got):\n%s", diff)
	}
}

func TestWelford(t *testing.T) {
	var w Welford
	if _, variance, _ := w.Get(); !math.IsNaN(variance) {
		t.Errorf("variance of an empty series = %v, want NaN", variance)
	}
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Update(v)
	}
	mean, variance, count := w.Get()
	if mean != 5 || math.Abs(variance-32.0/7) > 1e-9 || count != 8 {
		t.Errorf("Get() = %v, %v, %d; want 5, %v, 8", mean, variance, count, 32.0/7)
	}
}
