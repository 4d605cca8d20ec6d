// Package benor defines the core types shared by the Ben-Or binary consensus engine,
// its transports and its test harnesses.
//
// A network consists of N nodes of which at most F are faulty. Faulty nodes are silent:
// they never send or process protocol messages. Every round k consists of two phases:
//
//	proposal phase: each node broadcasts its estimate x. After collecting N-F proposals
//	                for round k, a node broadcasts the strict majority value, or "?".
//	voting phase:   after collecting N-F votes for round k, a node decides v if more
//	                than F votes are v. Otherwise it adopts the majority vote as its
//	                estimate, or flips a coin on a tie, and moves on to round k+1.
//
// The consensus package implements the per-node state machine, the network package
// exposes a node over HTTP, and the simnet package runs a whole network in memory.
package benor
