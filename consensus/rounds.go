package consensus

import "github.com/relab/benor"

// phaseBuffer collects the messages of one phase of one round.
type phaseBuffer struct {
	values  []benor.Value
	senders map[benor.ID]struct{}
}

// add appends the value of msg. It returns false if the sender already contributed.
func (b *phaseBuffer) add(msg benor.Message) bool {
	if msg.Sender != nil {
		if _, dup := b.senders[*msg.Sender]; dup {
			return false
		}
		if b.senders == nil {
			b.senders = make(map[benor.ID]struct{})
		}
		b.senders[*msg.Sender] = struct{}{}
	}
	b.values = append(b.values, msg.Value)
	return true
}

func (b *phaseBuffer) len() int {
	return len(b.values)
}

// roundState holds the buffers of a single round.
type roundState struct {
	proposals phaseBuffer
	votes     phaseBuffer
	// voted is set once the node has broadcast its vote for the round.
	voted bool
}

func (rs *roundState) buffer(phase benor.Phase) *phaseBuffer {
	if phase == benor.VotingPhase {
		return &rs.votes
	}
	return &rs.proposals
}

// roundBuffers is a window of round states starting at the current round.
// Rounds below the window are discarded when the window slides.
type roundBuffers struct {
	start  benor.Round
	rounds map[benor.Round]*roundState
}

func newRoundBuffers() *roundBuffers {
	return &roundBuffers{rounds: make(map[benor.Round]*roundState)}
}

// get returns the state of the given round, creating it if necessary.
func (rb *roundBuffers) get(round benor.Round) *roundState {
	rs, ok := rb.rounds[round]
	if !ok {
		rs = &roundState{}
		rb.rounds[round] = rs
	}
	return rs
}

// add buffers msg. It returns false if msg is outside the window or a duplicate.
func (rb *roundBuffers) add(msg benor.Message) bool {
	if msg.Round < rb.start {
		return false
	}
	return rb.get(msg.Round).buffer(msg.Phase).add(msg)
}

// slide discards every round below start.
func (rb *roundBuffers) slide(start benor.Round) {
	if start <= rb.start {
		return
	}
	for r := range rb.rounds {
		if r < start {
			delete(rb.rounds, r)
		}
	}
	rb.start = start
}

// len returns the number of buffered rounds.
func (rb *roundBuffers) len() int {
	return len(rb.rounds)
}
