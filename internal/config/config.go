// Package config holds the configuration of a local benor run.
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
)

// Config holds the configuration for a run.
type Config struct {
	// Nodes is the total number of nodes (N).
	Nodes int
	// Faulty is the number of nodes that may be faulty (F).
	Faulty int
	// FaultyIDs lists the nodes that are started as faulty.
	// It may hold more than Faulty entries to observe a run with too many faults.
	FaultyIDs []benor.ID
	// Values holds the initial value of each node, indexed by node ID.
	Values []benor.Value
	// BasePort is the port of node 0. Zero picks free ports.
	BasePort int
	// MaxRounds bounds the rounds each node runs. Zero means unbounded.
	MaxRounds benor.Round
	// Lookahead is the number of future rounds a node buffers messages for. Zero picks the default.
	Lookahead benor.Round
	// SettleDelay is the delay before a node polls its peers for halt detection.
	SettleDelay time.Duration
	// Timeout bounds the whole run.
	Timeout time.Duration
	// Seed seeds the coins of the nodes. Node i uses Seed+i.
	Seed int64
	// SendRate limits the messages per second each node sends. Zero means unlimited.
	SendRate float64
	// Output is the directory to save measurements and profiles to. Empty disables output.
	Output string

	LogLevel      string
	CpuProfile    bool
	MemProfile    bool
	Trace         bool
	FgProfProfile bool
}

// AlternatingValues returns n initial values alternating between Zero and One.
func AlternatingValues(n int) []benor.Value {
	values := make([]benor.Value, n)
	for i := range values {
		values[i] = benor.Value(i % 2)
	}
	return values
}

// ParseValues parses a list of initial values.
func ParseValues(values []string) ([]benor.Value, error) {
	parsed := make([]benor.Value, 0, len(values))
	for _, s := range values {
		v, err := benor.ParseValue(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, v)
	}
	return parsed, nil
}

// Validate checks that the configuration describes a network that can run.
func (c *Config) Validate() (err error) {
	if c.Nodes < 1 {
		err = multierr.Append(err, fmt.Errorf("need at least one node, got %d", c.Nodes))
	}
	if c.Faulty < 0 {
		err = multierr.Append(err, fmt.Errorf("number of faulty nodes must be non-negative, got %d", c.Faulty))
	}
	if benor.QuorumSize(c.Nodes, c.Faulty) < 1 {
		err = multierr.Append(err, fmt.Errorf("quorum size N-F must be positive, got N=%d F=%d", c.Nodes, c.Faulty))
	}
	if len(c.Values) != c.Nodes {
		err = multierr.Append(err, fmt.Errorf("got %d initial values for %d nodes", len(c.Values), c.Nodes))
	}
	for i, v := range c.Values {
		if !v.IsBinary() {
			err = multierr.Append(err, fmt.Errorf("initial value of node %d must be 0 or 1, got %v", i, v))
		}
	}
	seen := make(map[benor.ID]bool)
	for _, id := range c.FaultyIDs {
		if int(id) >= c.Nodes {
			err = multierr.Append(err, fmt.Errorf("faulty node %d out of range for %d nodes", id, c.Nodes))
		}
		if seen[id] {
			err = multierr.Append(err, fmt.Errorf("faulty node %d listed twice", id))
		}
		seen[id] = true
	}
	if c.BasePort < 0 || c.BasePort+c.Nodes > 65536 {
		err = multierr.Append(err, fmt.Errorf("base port %d out of range for %d nodes", c.BasePort, c.Nodes))
	}
	if c.SendRate < 0 {
		err = multierr.Append(err, fmt.Errorf("send rate must be non-negative, got %v", c.SendRate))
	}
	return err
}

// IsFaulty returns true if the given node is started as faulty.
func (c *Config) IsFaulty(id benor.ID) bool {
	for _, f := range c.FaultyIDs {
		if f == id {
			return true
		}
	}
	return false
}

// NodeOptions returns the consensus options of the given node.
func (c *Config) NodeOptions(id benor.ID) consensus.Options {
	opts := consensus.Options{
		N:           c.Nodes,
		F:           c.Faulty,
		Faulty:      c.IsFaulty(id),
		MaxRounds:   c.MaxRounds,
		Lookahead:   c.Lookahead,
		SettleDelay: c.SettleDelay,
	}
	if int(id) < len(c.Values) {
		opts.InitialValue = c.Values[id]
	}
	return opts
}
