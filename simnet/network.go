// Package simnet runs a whole network of consensus nodes in a single goroutine.
//
// Messages are held back until the next tick, and the messages of a tick are delivered
// in an order chosen by a seeded random source. Given the same configuration and seed,
// a run always produces the same result.
package simnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
	"github.com/relab/benor/logging"
)

var (
	// ErrStalled is returned by Run when no messages are in flight and some non-faulty node has not decided.
	ErrStalled = errors.New("network stalled")
	// ErrTickLimit is returned by Run when the network has not decided within the given number of ticks.
	ErrTickLimit = errors.New("tick limit reached")
)

// Config describes a simulated network.
type Config struct {
	// Values holds the initial value of each node. The number of nodes is len(Values).
	Values []benor.Value
	// F is the number of nodes that may be faulty.
	F int
	// Faulty lists the nodes that never take part in the protocol.
	Faulty []benor.ID
	// Seed seeds the delivery order and the coin of every node.
	Seed int64
	// MaxRounds bounds the number of rounds each node runs. Zero means unbounded.
	MaxRounds benor.Round
	// HaltDetection lets the nodes stop the network themselves once all of them decided.
	// Halt detection runs on timers, so runs that enable it are not deterministic.
	HaltDetection bool
	// Options are applied to every node.
	Options []consensus.Option
}

type pendingMessage struct {
	message  benor.Message
	sender   benor.ID
	receiver benor.ID
}

func (pm pendingMessage) String() string {
	return fmt.Sprintf("%d→%d: %v", pm.sender, pm.receiver, pm.message)
}

// Network is a simulated network of consensus nodes.
type Network struct {
	nodes  []*consensus.Node
	rnd    *rand.Rand
	logger logging.Logger
	log    safeBuffer

	mut     sync.Mutex
	pending []pendingMessage
	sent    map[benor.ID]int
}

// New creates a network of len(cfg.Values) nodes.
func New(cfg Config) (*Network, error) {
	n := len(cfg.Values)
	network := &Network{
		rnd:  rand.New(rand.NewSource(cfg.Seed)),
		sent: make(map[benor.ID]int),
	}
	network.logger = logging.NewWithDest(&network.log, "network")

	faulty := make(map[benor.ID]bool)
	for _, id := range cfg.Faulty {
		if int(id) >= n {
			return nil, fmt.Errorf("faulty node %d out of range for %d nodes", id, n)
		}
		faulty[id] = true
	}
	if len(faulty) > cfg.F {
		network.logger.Warnf("%d faulty nodes, but only %d are tolerated", len(faulty), cfg.F)
	}

	for i, value := range cfg.Values {
		id := benor.ID(i)
		opts := consensus.Options{
			N:            n,
			F:            cfg.F,
			InitialValue: value,
			Faulty:       faulty[id],
			MaxRounds:    cfg.MaxRounds,
		}
		options := []consensus.Option{
			consensus.WithLogger(logging.NewWithDest(&network.log, fmt.Sprintf("node%d", id))),
			consensus.WithCoin(consensus.NewRandomCoin(cfg.Seed + int64(id))),
		}
		if cfg.HaltDetection {
			options = append(options, consensus.WithCluster(network))
		}
		options = append(options, cfg.Options...)
		node, err := consensus.New(id, opts, &sender{network: network, id: id}, options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create node %d: %w", id, err)
		}
		network.nodes = append(network.nodes, node)
	}
	return network, nil
}

// Node returns the node with the given ID.
func (n *Network) Node(id benor.ID) *consensus.Node {
	return n.nodes[id]
}

// IDs returns the IDs of all nodes in the network.
func (n *Network) IDs() []benor.ID {
	ids := make([]benor.ID, len(n.nodes))
	for i := range n.nodes {
		ids[i] = benor.ID(i)
	}
	return ids
}

// State returns the state of the node with the given ID.
func (n *Network) State(_ context.Context, id benor.ID) (benor.NodeState, error) {
	if int(id) >= len(n.nodes) {
		return benor.NodeState{}, fmt.Errorf("unknown node %d", id)
	}
	return n.nodes[id].State(), nil
}

// Stop stops the node with the given ID.
func (n *Network) Stop(_ context.Context, id benor.ID) error {
	if int(id) >= len(n.nodes) {
		return fmt.Errorf("unknown node %d", id)
	}
	n.nodes[id].Stop()
	return nil
}

// States returns the state of every node, indexed by ID.
func (n *Network) States() []benor.NodeState {
	states := make([]benor.NodeState, len(n.nodes))
	for i, node := range n.nodes {
		states[i] = node.State()
	}
	return states
}

// Sent returns the number of messages the node with the given ID has broadcast.
func (n *Network) Sent(id benor.ID) int {
	n.mut.Lock()
	defer n.mut.Unlock()
	return n.sent[id]
}

// Log returns everything logged by the network and its nodes.
func (n *Network) Log() string {
	return n.log.String()
}

// Run starts every node and delivers messages until every non-faulty node has decided.
// It returns the number of ticks that were needed.
func (n *Network) Run(ctx context.Context, ticks int) (int, error) {
	for _, node := range n.nodes {
		if err := node.Start(ctx); err != nil {
			return 0, err
		}
	}
	for tick := 1; tick <= ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return tick, err
		}
		n.logger.Debugf("new tick: %d", tick)
		if n.tick() == 0 {
			if consensus.AllDecided(ctx, n) {
				return tick, nil
			}
			return tick, ErrStalled
		}
		if consensus.AllDecided(ctx, n) {
			return tick, nil
		}
	}
	return ticks, ErrTickLimit
}

// tick delivers the messages that are currently pending in random order.
// Messages sent while delivering are held back until the next tick.
// It returns the number of delivered messages.
func (n *Network) tick() int {
	n.mut.Lock()
	pending := n.pending
	n.pending = nil
	n.mut.Unlock()

	n.rnd.Shuffle(len(pending), func(i, j int) {
		pending[i], pending[j] = pending[j], pending[i]
	})
	for _, pm := range pending {
		node := n.nodes[pm.receiver]
		if err := node.HandleMessage(pm.message); err != nil && !errors.Is(err, benor.ErrInactive) {
			n.logger.Infof("failed to deliver %v: %v", pm, err)
		}
	}
	return len(pending)
}

// sender broadcasts a node's messages to every node in the network, including itself.
type sender struct {
	network *Network
	id      benor.ID
}

func (s *sender) Broadcast(msg benor.Message) {
	n := s.network
	n.mut.Lock()
	defer n.mut.Unlock()
	n.sent[s.id]++
	for i := range n.nodes {
		n.pending = append(n.pending, pendingMessage{message: msg, sender: s.id, receiver: benor.ID(i)})
	}
}

// safeBuffer is a bytes.Buffer that can be written to concurrently.
type safeBuffer struct {
	mut sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mut.Lock()
	defer b.mut.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mut.Lock()
	defer b.mut.Unlock()
	return b.buf.String()
}
