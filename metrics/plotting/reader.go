package plotting

import (
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Plotter processes measurements from a reader.
type Plotter interface {
	// Add adds a measurement to the plotter.
	Add(Measurement)
}

// Reader reads measurements from JSON.
type Reader struct {
	plotters []Plotter
	rd       io.Reader
}

// NewReader returns a new reader that reads from the specified source and adds measurements to the plotters.
func NewReader(rd io.Reader, plotters ...Plotter) *Reader {
	return &Reader{
		plotters: plotters,
		rd:       rd,
	}
}

// ReadAll reads all measurements in the source.
func (r *Reader) ReadAll() error {
	decoder := json.NewDecoder(r.rd)

	t, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("failed to read first JSON token: %w", err)
	}
	if d, ok := t.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("expected first JSON token to be the start of an array")
	}

	for decoder.More() {
		var b json.RawMessage
		if err := decoder.Decode(&b); err != nil {
			return err
		}
		if err := r.read(b); err != nil {
			return err
		}
	}

	t, err = decoder.Token()
	if err != nil {
		return fmt.Errorf("failed to read last JSON token: %w", err)
	}
	if d, ok := t.(json.Delim); !ok || d != ']' {
		return fmt.Errorf("expected last JSON token to be the end of an array")
	}
	return nil
}

func (r *Reader) read(b []byte) error {
	anyMsg := &anypb.Any{}
	if err := protojson.Unmarshal(b, anyMsg); err != nil {
		return fmt.Errorf("failed to unmarshal JSON message: %w", err)
	}

	msg, err := anyMsg.UnmarshalNew()
	if err != nil {
		return fmt.Errorf("failed to unmarshal Any message: %w", err)
	}
	s, ok := msg.(*structpb.Struct)
	if !ok {
		// not a measurement
		return nil
	}
	m, err := ParseMeasurement(s)
	if err != nil {
		return err
	}
	for _, p := range r.plotters {
		p.Add(m)
	}
	return nil
}
