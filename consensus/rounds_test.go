package consensus

import (
	"testing"

	"github.com/relab/benor"
)

func TestPhaseBufferDeduplicatesSenders(t *testing.T) {
	var b phaseBuffer
	if !b.add(benor.NewMessage(1, 1, benor.Zero, benor.ProposalPhase)) {
		t.Fatal("first message from sender 1 rejected")
	}
	if b.add(benor.NewMessage(1, 1, benor.One, benor.ProposalPhase)) {
		t.Error("second message from sender 1 accepted")
	}
	if !b.add(benor.NewMessage(2, 1, benor.One, benor.ProposalPhase)) {
		t.Error("message from sender 2 rejected")
	}
	// messages without a sender are always counted
	anon := benor.Message{Round: 1, Value: benor.One, Phase: benor.ProposalPhase}
	if !b.add(anon) || !b.add(anon) {
		t.Error("anonymous messages rejected")
	}
	if got := b.len(); got != 4 {
		t.Errorf("len() = %d, want 4", got)
	}
}

func TestRoundBuffersSlide(t *testing.T) {
	rb := newRoundBuffers()
	for r := benor.Round(1); r <= 3; r++ {
		rb.add(benor.NewMessage(0, r, benor.Zero, benor.ProposalPhase))
		rb.add(benor.NewMessage(0, r, benor.Zero, benor.VotingPhase))
	}
	if got := rb.len(); got != 3 {
		t.Fatalf("len() = %d, want 3", got)
	}

	rb.slide(3)
	if got := rb.len(); got != 1 {
		t.Errorf("len() after slide = %d, want 1", got)
	}
	if rb.add(benor.NewMessage(1, 2, benor.Zero, benor.ProposalPhase)) {
		t.Error("message for a discarded round accepted")
	}
	if got := rb.get(3).proposals.len(); got != 1 {
		t.Errorf("round 3 proposals = %d, want 1", got)
	}

	// sliding backwards is a no-op
	rb.slide(1)
	if rb.add(benor.NewMessage(1, 2, benor.Zero, benor.ProposalPhase)) {
		t.Error("window moved backwards")
	}
}

func TestRoundStateBuffers(t *testing.T) {
	var rs roundState
	rs.buffer(benor.ProposalPhase).add(benor.NewMessage(0, 1, benor.One, benor.ProposalPhase))
	rs.buffer(benor.VotingPhase).add(benor.NewMessage(0, 1, benor.Undecided, benor.VotingPhase))
	rs.buffer(benor.VotingPhase).add(benor.NewMessage(1, 1, benor.Undecided, benor.VotingPhase))
	if rs.proposals.len() != 1 || rs.votes.len() != 2 {
		t.Errorf("proposals = %d, votes = %d; want 1, 2", rs.proposals.len(), rs.votes.len())
	}
}
