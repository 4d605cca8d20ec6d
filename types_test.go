package benor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMessageJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Message
	}{
		{
			name: "ProposalZero",
			json: `{"k": 1, "x": 0, "messageType": "proposal phase"}`,
			want: Message{Round: 1, Value: Zero, Phase: ProposalPhase},
		},
		{
			name: "VoteUndecided",
			json: `{"k": 3, "x": "?", "messageType": "voting phase"}`,
			want: Message{Round: 3, Value: Undecided, Phase: VotingPhase},
		},
		{
			name: "ShortPhaseWithSender",
			json: `{"k": 2, "x": 1, "messageType": "voting", "sender": 4}`,
			want: NewMessage(4, 2, One, VotingPhase),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Message
			if err := json.Unmarshal([]byte(tt.json), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Unmarshal() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMessageJSONMalformed(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{name: "MissingK", json: `{"x": 0, "messageType": "proposal phase"}`, want: ErrMalformedMessage},
		{name: "MissingX", json: `{"k": 1, "messageType": "proposal phase"}`, want: ErrMalformedMessage},
		{name: "NullX", json: `{"k": 1, "x": null, "messageType": "proposal phase"}`, want: ErrMalformedMessage},
		{name: "MissingType", json: `{"k": 1, "x": 1}`, want: ErrMalformedMessage},
		{name: "BadValue", json: `{"k": 1, "x": 2, "messageType": "proposal phase"}`, want: ErrInvalidValue},
		{name: "BadPhase", json: `{"k": 1, "x": 1, "messageType": "commit"}`, want: ErrInvalidPhase},
		{name: "NotJSON", json: `hello`, want: ErrMalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Message
			err := json.Unmarshal([]byte(tt.json), &got)
			if !errors.Is(err, tt.want) {
				t.Errorf("Unmarshal() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{name: "Proposal____", msg: NewMessage(0, 1, One, ProposalPhase), want: nil},
		{name: "VoteUnknown_", msg: Message{Round: 7, Value: Undecided, Phase: VotingPhase}, want: nil},
		{name: "ZeroRound___", msg: NewMessage(0, 0, One, ProposalPhase), want: ErrMalformedMessage},
		{name: "NoPhase_____", msg: NewMessage(0, 1, One, 0), want: ErrInvalidPhase},
		{name: "BadValue____", msg: NewMessage(0, 1, 3, VotingPhase), want: ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
			if tt.want != nil && !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Validate() = %v, want it to wrap %v", err, ErrMalformedMessage)
			}
		})
	}
}

func TestMessageMarshal(t *testing.T) {
	b, err := json.Marshal(NewMessage(2, 5, Undecided, VotingPhase))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"k":5,"x":"?","messageType":"voting phase","sender":2}`
	if string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}
}

func TestNodeStateJSON(t *testing.T) {
	x, decided, k := One, true, Round(3)
	tests := []struct {
		name  string
		state NodeState
		want  string
	}{
		{
			name:  "Faulty",
			state: NodeState{Killed: true},
			want:  `{"killed":true,"x":null,"decided":null,"k":null}`,
		},
		{
			name:  "Decided",
			state: NodeState{X: &x, Decided: &decided, K: &k},
			want:  `{"killed":false,"x":1,"decided":true,"k":3}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.state)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Errorf("Marshal() = %s, want %s", b, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	for _, s := range []string{"0", "1", "?"} {
		v, err := ParseValue(s)
		if err != nil {
			t.Fatalf("ParseValue(%q) error = %v", s, err)
		}
		if v.String() != s {
			t.Errorf("ParseValue(%q).String() = %q", s, v.String())
		}
	}
	if _, err := ParseValue("x"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ParseValue(\"x\") error = %v, want %v", err, ErrInvalidValue)
	}
}
