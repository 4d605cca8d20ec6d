package consensus

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/relab/benor"
)

// scheduleHaltCheck starts a halt detection task unless one is already running.
// Must be called with n.mut held.
func (n *Node) scheduleHaltCheck() {
	if n.cluster == nil || n.halting || n.killed {
		return
	}
	n.halting = true
	go n.haltCheck(n.ctx)
}

// haltCheck waits for the settle delay, and then stops every node if all of them have decided.
// The task ends early if the node is stopped.
func (n *Node) haltCheck(ctx context.Context) {
	defer func() {
		n.mut.Lock()
		n.halting = false
		n.mut.Unlock()
	}()

	timer := time.NewTimer(n.opts.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if !AllDecided(ctx, n.cluster) {
		return
	}

	// stopping this node cancels ctx, so the stop requests get their own deadline
	stopCtx, cancel := context.WithTimeout(context.Background(), n.opts.StopTimeout)
	defer cancel()
	if err := StopAll(stopCtx, n.cluster); err != nil {
		n.logger.Debugf("failed to stop every node: %v", err)
	}
	n.logger.Infof("all nodes decided: network halted")
	n.dispatch([]any{HaltEvent{ID: n.id}})
}

// AllDecided returns true if every non-faulty node in the cluster reports decided = true.
// A node that cannot be reached counts as undecided. Faulty nodes are skipped since they never decide.
func AllDecided(ctx context.Context, cluster Cluster) bool {
	for _, id := range cluster.IDs() {
		state, err := cluster.State(ctx, id)
		if err != nil {
			return false
		}
		if isFaultyState(state) {
			continue
		}
		if !state.IsDecided() {
			return false
		}
	}
	return true
}

// isFaultyState reports whether state is the state of a node that never took part in the protocol.
func isFaultyState(state benor.NodeState) bool {
	return state.Killed && state.K == nil
}

// StopAll sends a stop request to every node in the cluster.
func StopAll(ctx context.Context, cluster Cluster) (err error) {
	for _, id := range cluster.IDs() {
		err = multierr.Append(err, cluster.Stop(ctx, id))
	}
	return err
}
