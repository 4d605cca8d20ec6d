// Package plotting reads measurements recorded by the metrics package and plots them.
package plotting

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/relab/benor"
)

// Measurement is a recorded node event.
type Measurement struct {
	Event string
	Node  benor.ID
	// Round is zero for events that do not belong to a round.
	Round benor.Round
	// Value is Undecided for events that do not carry a value.
	Value     benor.Value
	Timestamp *timestamppb.Timestamp
}

// ParseMeasurement extracts a measurement from the fields of a recorded event.
func ParseMeasurement(s *structpb.Struct) (Measurement, error) {
	fields := s.GetFields()
	m := Measurement{
		Event: fields["event"].GetStringValue(),
		Node:  benor.ID(fields["node"].GetNumberValue()),
		Round: benor.Round(fields["round"].GetNumberValue()),
		Value: benor.Undecided,
	}
	if m.Event == "" {
		return m, fmt.Errorf("measurement without event name: %v", s)
	}
	if v, ok := fields["value"].GetKind().(*structpb.Value_NumberValue); ok {
		m.Value = benor.Value(v.NumberValue)
	}
	if ts := fields["timestamp"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return m, fmt.Errorf("invalid timestamp in %s measurement: %w", m.Event, err)
		}
		m.Timestamp = timestamppb.New(t)
	}
	return m, nil
}
