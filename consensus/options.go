package consensus

import (
	"fmt"
	"time"

	"github.com/relab/benor"
	"github.com/relab/benor/logging"
)

const (
	// DefaultLookahead is the default number of rounds ahead of the current round that are buffered.
	DefaultLookahead benor.Round = 16
	// DefaultSettleDelay is the default delay between a voting quorum and polling peers for halt detection.
	DefaultSettleDelay = 200 * time.Millisecond
	// DefaultStopTimeout bounds the time spent stopping the network after every node decided.
	DefaultStopTimeout = 2 * time.Second
)

// Options describes a node and the network it is part of.
type Options struct {
	// N is the number of nodes in the network.
	N int
	// F is the number of nodes that may be faulty.
	F int
	// InitialValue is the node's first estimate.
	InitialValue benor.Value
	// Faulty nodes never take part in the protocol.
	Faulty bool
	// MaxRounds bounds the number of rounds a node runs. Zero means unbounded.
	MaxRounds benor.Round
	// Lookahead is the number of rounds beyond the current round for which messages are buffered.
	// Messages further ahead are dropped and never retransmitted, so a node that falls more
	// than Lookahead rounds behind the rest of a quorum may stall until the run's timeout.
	Lookahead benor.Round
	// SettleDelay is the delay between a voting quorum and polling peers for halt detection.
	SettleDelay time.Duration
	// StopTimeout bounds the time spent stopping the network after every node decided.
	StopTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.Lookahead == 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.StopTimeout == 0 {
		o.StopTimeout = DefaultStopTimeout
	}
}

func (o Options) validate(id benor.ID) error {
	switch {
	case o.N < 1:
		return fmt.Errorf("network must have at least one node, got N=%d", o.N)
	case o.F < 0:
		return fmt.Errorf("number of faulty nodes must be non-negative, got F=%d", o.F)
	case benor.QuorumSize(o.N, o.F) < 1:
		return fmt.Errorf("quorum size N-F must be positive, got N=%d F=%d", o.N, o.F)
	case int(id) >= o.N:
		return fmt.Errorf("node ID %d out of range for N=%d", id, o.N)
	case !o.Faulty && !o.InitialValue.IsBinary():
		return fmt.Errorf("initial value must be 0 or 1, got %v", o.InitialValue)
	}
	return nil
}

// Option sets optional collaborators of a node.
type Option func(*Node)

// WithLogger sets the logger used by the node.
func WithLogger(logger logging.Logger) Option {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithCoin sets the coin used to break ties.
func WithCoin(coin Coin) Option {
	return func(n *Node) {
		n.coin = coin
	}
}

// WithReadiness makes Start wait until every node in the network is ready.
func WithReadiness(ready Readiness) Option {
	return func(n *Node) {
		n.ready = ready
	}
}

// WithCluster enables halt detection: after each voting quorum the node polls
// its peers and stops the network once every node has decided.
func WithCluster(cluster Cluster) Option {
	return func(n *Node) {
		n.cluster = cluster
	}
}

// WithEventHandler registers a handler for the events emitted by the node.
// The handler is called outside the node's critical section.
func WithEventHandler(handler EventHandler) Option {
	return func(n *Node) {
		n.handlers = append(n.handlers, handler)
	}
}
