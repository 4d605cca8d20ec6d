package benor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID identifies a node. IDs are zero-based indices into the network,
// and a node's network address is derived from its ID.
type ID uint32

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Round is the number k of a proposal+voting cycle.
// A node is in round 0 until it is started.
type Round uint64

// Value is a node's estimate. Only Zero and One can be decided;
// Undecided is the aggregate of a proposal phase without a majority of the network.
type Value int8

const (
	// Undecided is the "?" value.
	Undecided Value = -1
	// Zero is the binary value 0.
	Zero Value = 0
	// One is the binary value 1.
	One Value = 1
)

// IsBinary returns true if v is either Zero or One.
func (v Value) IsBinary() bool {
	return v == Zero || v == One
}

func (v Value) String() string {
	switch v {
	case Zero:
		return "0"
	case One:
		return "1"
	case Undecided:
		return "?"
	}
	return "Value(" + strconv.Itoa(int(v)) + ")"
}

// ParseValue parses "0", "1" or "?".
func ParseValue(s string) (Value, error) {
	switch s {
	case "0":
		return Zero, nil
	case "1":
		return One, nil
	case "?":
		return Undecided, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidValue)
}

// MarshalJSON encodes binary values as numbers and Undecided as the string "?".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v {
	case Zero, One:
		return []byte(v.String()), nil
	case Undecided:
		return []byte(`"?"`), nil
	}
	return nil, fmt.Errorf("marshal %v: %w", v, ErrInvalidValue)
}

// UnmarshalJSON accepts 0, 1 and "?".
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s != "?" {
			return fmt.Errorf("%q: %w", s, ErrInvalidValue)
		}
		*v = Undecided
		return nil
	}
	val, err := ParseValue(string(b))
	if err != nil || val == Undecided {
		return fmt.Errorf("%s: %w", b, ErrInvalidValue)
	}
	*v = val
	return nil
}

// Phase is the protocol phase a message belongs to.
type Phase uint8

const (
	// ProposalPhase messages carry a node's estimate for a round.
	ProposalPhase Phase = iota + 1
	// VotingPhase messages carry the aggregate of a node's proposal quorum.
	VotingPhase
)

func (p Phase) String() string {
	switch p {
	case ProposalPhase:
		return "proposal phase"
	case VotingPhase:
		return "voting phase"
	}
	return "Phase(" + strconv.Itoa(int(p)) + ")"
}

// ParsePhase parses a phase name. Both the long ("proposal phase") and
// short ("proposal") forms are accepted.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "proposal phase", "proposal":
		return ProposalPhase, nil
	case "voting phase", "voting":
		return VotingPhase, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidPhase)
}

// MarshalJSON encodes the phase using its long name.
func (p Phase) MarshalJSON() ([]byte, error) {
	if p != ProposalPhase && p != VotingPhase {
		return nil, fmt.Errorf("marshal %v: %w", p, ErrInvalidPhase)
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a phase name.
func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%s: %w", b, ErrInvalidPhase)
	}
	phase, err := ParsePhase(s)
	if err != nil {
		return err
	}
	*p = phase
	return nil
}

// Message is a protocol message.
// Sender is optional; when present, receivers count at most one
// message per sender, phase and round.
type Message struct {
	Sender *ID
	Round  Round
	Value  Value
	Phase  Phase
}

// NewMessage returns a message sent by the given node.
func NewMessage(sender ID, round Round, value Value, phase Phase) Message {
	return Message{Sender: &sender, Round: round, Value: value, Phase: phase}
}

func (m Message) String() string {
	from := "?"
	if m.Sender != nil {
		from = m.Sender.String()
	}
	return fmt.Sprintf("%s{k: %d, x: %v, from: %s}", m.Phase, m.Round, m.Value, from)
}

// Validate returns an error wrapping ErrMalformedMessage if the message
// cannot belong to any round of the protocol.
func (m Message) Validate() error {
	switch {
	case m.Round == 0:
		return fmt.Errorf("%w: round must be positive", ErrMalformedMessage)
	case m.Phase != ProposalPhase && m.Phase != VotingPhase:
		return fmt.Errorf("%w: %w: %d", ErrMalformedMessage, ErrInvalidPhase, m.Phase)
	case !m.Value.IsBinary() && m.Value != Undecided:
		return fmt.Errorf("%w: %w: %d", ErrMalformedMessage, ErrInvalidValue, m.Value)
	}
	return nil
}

type wireMessage struct {
	K           *Round `json:"k"`
	X           *Value `json:"x"`
	MessageType *Phase `json:"messageType"`
	Sender      *ID    `json:"sender,omitempty"`
}

// MarshalJSON encodes the message as {k, x, messageType, sender}.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		K:           &m.Round,
		X:           &m.Value,
		MessageType: &m.Phase,
		Sender:      m.Sender,
	})
}

// UnmarshalJSON decodes a message, returning ErrMalformedMessage
// if any of k, x or messageType is missing.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	switch {
	case w.K == nil:
		return fmt.Errorf("%w: missing k", ErrMalformedMessage)
	case w.X == nil:
		return fmt.Errorf("%w: missing x", ErrMalformedMessage)
	case w.MessageType == nil:
		return fmt.Errorf("%w: missing messageType", ErrMalformedMessage)
	}
	*m = Message{Sender: w.Sender, Round: *w.K, Value: *w.X, Phase: *w.MessageType}
	return nil
}

// NodeState is a snapshot of a node's externally observable state.
//
// X, Decided and K are nil for faulty nodes. Decided is false before the
// protocol has decided, and nil again after a node gives up deciding.
type NodeState struct {
	Killed  bool   `json:"killed"`
	X       *Value `json:"x"`
	Decided *bool  `json:"decided"`
	K       *Round `json:"k"`
}

// IsDecided returns true if the state reports decided = true.
func (s NodeState) IsDecided() bool {
	return s.Decided != nil && *s.Decided
}

func (s NodeState) String() string {
	x, decided, k := "null", "null", "null"
	if s.X != nil {
		x = s.X.String()
	}
	if s.Decided != nil {
		decided = strconv.FormatBool(*s.Decided)
	}
	if s.K != nil {
		k = strconv.FormatUint(uint64(*s.K), 10)
	}
	return fmt.Sprintf("{killed: %v, x: %s, decided: %s, k: %s}", s.Killed, x, decided, k)
}
