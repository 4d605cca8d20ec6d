package benor

// QuorumSize returns the number of phase messages a node must collect
// before it aggregates a phase in a network of n nodes with at most f faulty.
func QuorumSize(n, f int) int {
	return n - f
}

// SuperMajority returns the number of identical votes needed to decide a value
// when at most f nodes are faulty.
func SuperMajority(f int) int {
	return f + 1
}

// MaxFaulty returns the maximum number of silent nodes a network of n nodes
// can tolerate while every quorum still holds a majority of correct nodes.
func MaxFaulty(n int) int {
	if n < 1 {
		return 0
	}
	return (n - 1) / 2
}
