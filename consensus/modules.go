// Package consensus implements the Ben-Or consensus engine of a single node.
package consensus

import (
	"context"

	"github.com/relab/benor"
)

//go:generate mockgen -destination=../internal/mocks/sender_mock.go -package=mocks . Sender

// Sender delivers protocol messages to every node in the network, including the sender itself.
//
// Broadcast is called while the node holds its state lock. Implementations must not block
// on delivery and must never deliver a message synchronously back into the calling node.
type Sender interface {
	Broadcast(msg benor.Message)
}

//go:generate mockgen -destination=../internal/mocks/cluster_mock.go -package=mocks . Cluster

// Cluster gives a node access to the state of its peers. It is used to detect that
// every node has decided so the whole network can be halted.
type Cluster interface {
	// IDs returns the IDs of all nodes in the network.
	IDs() []benor.ID
	// State returns the current state of the node with the given ID.
	State(ctx context.Context, id benor.ID) (benor.NodeState, error)
	// Stop stops the node with the given ID.
	Stop(ctx context.Context, id benor.ID) error
}

// Readiness reports whether every node in the network is ready to receive messages.
type Readiness interface {
	AllReady() bool
	// Wait blocks until every node is ready or ctx is done.
	Wait(ctx context.Context) error
}

// Coin breaks ties between zero and one votes.
type Coin interface {
	// Flip returns Zero or One.
	Flip(round benor.Round) benor.Value
}

// EventHandler processes an event emitted by a node.
type EventHandler func(event any)
