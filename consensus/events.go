package consensus

import "github.com/relab/benor"

// RoundEvent is emitted when a node has completed a round and moved on to the next.
type RoundEvent struct {
	ID benor.ID
	// Round is the round the node moved on to.
	Round benor.Round
	// Estimate is the value the node proposes in Round.
	Estimate benor.Value
	// CoinFlipped is true if the estimate was chosen by the coin.
	CoinFlipped bool
}

// DecideEvent is emitted once, when a node decides.
type DecideEvent struct {
	ID    benor.ID
	Round benor.Round
	Value benor.Value
}

// GiveUpEvent is emitted when a node reaches its round limit without deciding.
type GiveUpEvent struct {
	ID    benor.ID
	Round benor.Round
}

// HaltEvent is emitted when a node observed that every node decided and stopped the network.
type HaltEvent struct {
	ID benor.ID
}
