package consensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relab/benor"
	"github.com/relab/benor/logging"
)

// Node is the consensus engine of a single node.
//
// All protocol state is guarded by a single mutex. Appending a message to a round
// buffer, checking the quorum threshold and dispatching the resulting broadcast
// happen in one critical section, so concurrent deliveries that cross a threshold
// together still cause exactly one broadcast.
type Node struct {
	id     benor.ID
	opts   Options
	sender Sender

	logger   logging.Logger
	coin     Coin
	ready    Readiness
	cluster  Cluster
	handlers []EventHandler

	ctx    context.Context
	cancel context.CancelFunc

	mut     sync.Mutex
	killed  bool
	retired bool // reached MaxRounds
	x       benor.Value
	decided bool
	round   benor.Round
	rounds  *roundBuffers
	halting bool // a halt detection task is running
	events  []any
}

// New returns a node with the given ID. Messages are sent using sender.
func New(id benor.ID, opts Options, sender Sender, options ...Option) (*Node, error) {
	if err := opts.validate(id); err != nil {
		return nil, err
	}
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		id:     id,
		opts:   opts,
		sender: sender,
		ctx:    ctx,
		cancel: cancel,
		killed: opts.Faulty,
		x:      opts.InitialValue,
		rounds: newRoundBuffers(),
	}
	for _, opt := range options {
		opt(n)
	}
	if n.logger == nil {
		n.logger = logging.New(fmt.Sprintf("node%d", id))
	}
	if n.coin == nil {
		n.coin = NewRandomCoin(time.Now().UnixNano() + int64(id))
	}
	if opts.Faulty {
		cancel()
	}
	return n, nil
}

// ID returns the node's ID.
func (n *Node) ID() benor.ID {
	return n.id
}

// Faulty returns true if the node was created faulty.
func (n *Node) Faulty() bool {
	return n.opts.Faulty
}

// Status returns an error wrapping benor.ErrFaulty if the node is faulty, and nil if it is live.
func (n *Node) Status() error {
	if n.opts.Faulty {
		return fmt.Errorf("node %d: %w", n.id, benor.ErrFaulty)
	}
	return nil
}

// State returns a snapshot of the node's state.
func (n *Node) State() benor.NodeState {
	n.mut.Lock()
	defer n.mut.Unlock()
	return n.stateLocked()
}

func (n *Node) stateLocked() benor.NodeState {
	state := benor.NodeState{Killed: n.killed}
	if n.opts.Faulty {
		return state
	}
	k := n.round
	state.K = &k
	if n.retired && !n.decided {
		// degraded termination: neither a value nor a decision
		return state
	}
	x, decided := n.x, n.decided
	state.X = &x
	state.Decided = &decided
	return state
}

// Start starts round 1 once every node in the network is ready.
// It does nothing if the node is killed or faulty, or if it was already started.
func (n *Node) Start(ctx context.Context) error {
	if n.inactive() {
		return nil
	}
	if err := n.waitReady(ctx); err != nil {
		return fmt.Errorf("node %d: waiting for network: %w", n.id, err)
	}

	n.mut.Lock()
	if n.killed || n.retired {
		n.mut.Unlock()
		return nil
	}
	if n.round > 0 {
		n.logger.Debugf("already started (k = %d)", n.round)
		n.mut.Unlock()
		return nil
	}
	n.round = 1
	n.rounds.slide(1)
	n.logger.Debugf("starting with x = %v", n.x)
	n.broadcast(benor.ProposalPhase, n.x)
	n.progress()
	events := n.takeEvents()
	n.mut.Unlock()

	n.dispatch(events)
	return nil
}

func (n *Node) inactive() bool {
	n.mut.Lock()
	defer n.mut.Unlock()
	return n.killed || n.retired
}

// waitReady blocks until the network is ready, ctx is done or the node is stopped.
func (n *Node) waitReady(ctx context.Context) error {
	if n.ready == nil || n.ready.AllReady() {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(n.ctx, cancel)
	defer stop()
	if err := n.ready.Wait(ctx); err != nil {
		if n.ctx.Err() != nil {
			return n.ctx.Err()
		}
		return err
	}
	return nil
}

// Stop kills the node. It is irreversible.
func (n *Node) Stop() {
	n.mut.Lock()
	defer n.mut.Unlock()
	if !n.killed {
		n.logger.Debugf("stopped in round %d", n.round)
	}
	n.killed = true
	n.cancel()
}

// HandleMessage processes a protocol message.
// It returns an error wrapping benor.ErrInactive if the node is killed, faulty or has
// reached its round limit, and one wrapping benor.ErrMalformedMessage if msg is invalid.
func (n *Node) HandleMessage(msg benor.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("node %d: %w", n.id, err)
	}

	n.mut.Lock()
	if n.killed || n.retired {
		n.mut.Unlock()
		return fmt.Errorf("node %d: %w", n.id, benor.ErrInactive)
	}
	if n.accept(msg) {
		n.progress()
	}
	events := n.takeEvents()
	n.mut.Unlock()

	n.dispatch(events)
	return nil
}

// accept buffers msg if it falls within the window of rounds the node keeps.
func (n *Node) accept(msg benor.Message) bool {
	if msg.Round > n.round+n.opts.Lookahead {
		n.logger.Debugf("dropping %v: too far ahead of k = %d", msg, n.round)
		return false
	}
	if !n.rounds.add(msg) {
		n.logger.Debugf("dropping %v: stale or duplicate (k = %d)", msg, n.round)
		return false
	}
	return true
}

// progress evaluates the current round until it lacks a quorum.
// A node only tallies the votes of a round after it has cast its own vote in that round.
func (n *Node) progress() {
	quorum := benor.QuorumSize(n.opts.N, n.opts.F)
	for n.round > 0 && !n.killed && !n.retired {
		rs := n.rounds.get(n.round)
		if !rs.voted {
			if rs.proposals.len() < quorum {
				return
			}
			rs.voted = true
			aggregate := Aggregate(rs.proposals.values, n.opts.N)
			n.logger.Debugf("proposal quorum in round %d: voting %v", n.round, aggregate)
			n.broadcast(benor.VotingPhase, aggregate)
		}
		if rs.votes.len() < quorum {
			return
		}
		n.finishRound(Tally(rs.votes.values, n.opts.F))
	}
}

// finishRound applies the outcome of the current round's voting quorum and moves on to the next round.
func (n *Node) finishRound(outcome Outcome) {
	coinFlipped := false
	switch {
	case n.decided:
		// a decided value never changes
	case outcome.Decided:
		n.x = outcome.Value
		n.decided = true
		n.logger.Infof("decided %v in round %d", n.x, n.round)
		n.emit(DecideEvent{ID: n.id, Round: n.round, Value: n.x})
	case outcome.Tie:
		n.x = n.coin.Flip(n.round)
		coinFlipped = true
	default:
		n.x = outcome.Value
	}

	n.scheduleHaltCheck()

	if n.opts.MaxRounds > 0 && n.round >= n.opts.MaxRounds {
		n.retired = true
		if !n.decided {
			n.logger.Warnf("giving up after %d rounds", n.round)
			n.emit(GiveUpEvent{ID: n.id, Round: n.round})
		}
		return
	}

	n.round++
	n.rounds.slide(n.round)
	n.emit(RoundEvent{ID: n.id, Round: n.round, Estimate: n.x, CoinFlipped: coinFlipped})
	n.broadcast(benor.ProposalPhase, n.x)
}

func (n *Node) broadcast(phase benor.Phase, value benor.Value) {
	n.sender.Broadcast(benor.NewMessage(n.id, n.round, value, phase))
}

func (n *Node) emit(event any) {
	if len(n.handlers) > 0 {
		n.events = append(n.events, event)
	}
}

func (n *Node) takeEvents() []any {
	events := n.events
	n.events = nil
	return events
}

func (n *Node) dispatch(events []any) {
	for _, event := range events {
		for _, handler := range n.handlers {
			handler(event)
		}
	}
}
