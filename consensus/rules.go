package consensus

import "github.com/relab/benor"

// Count returns the number of Zero and One values. Undecided values are ignored.
func Count(values []benor.Value) (zeros, ones int) {
	for _, v := range values {
		switch v {
		case benor.Zero:
			zeros++
		case benor.One:
			ones++
		}
	}
	return zeros, ones
}

// Aggregate returns the value proposed by a majority of all n nodes, or Undecided
// if neither value reaches more than n/2 of the proposals.
// Two majorities of n nodes always overlap, so every binary vote cast in a round
// carries the same value, whatever quorum each node happened to collect.
func Aggregate(proposals []benor.Value, n int) benor.Value {
	zeros, ones := Count(proposals)
	switch {
	case 2*zeros > n:
		return benor.Zero
	case 2*ones > n:
		return benor.One
	default:
		return benor.Undecided
	}
}

// Outcome is the result of tallying a voting quorum.
type Outcome struct {
	// Value is the decided value or the next round's estimate.
	// It is Undecided if Tie is true.
	Value benor.Value
	// Decided is true if more than f votes were for Value.
	Decided bool
	// Tie is true if no value can be decided and the votes do not favor either value.
	// The estimate must then be chosen by a coin flip.
	Tie bool
}

// Tally applies the decision rule to a voting quorum in a network with at most f faulty nodes.
func Tally(votes []benor.Value, f int) Outcome {
	zeros, ones := Count(votes)
	switch {
	case zeros >= benor.SuperMajority(f):
		return Outcome{Value: benor.Zero, Decided: true}
	case ones >= benor.SuperMajority(f):
		return Outcome{Value: benor.One, Decided: true}
	case zeros > ones:
		return Outcome{Value: benor.Zero}
	case ones > zeros:
		return Outcome{Value: benor.One}
	default:
		return Outcome{Value: benor.Undecided, Tie: true}
	}
}
