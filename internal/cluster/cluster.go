// Package cluster runs a network of consensus nodes on localhost, each behind its own HTTP server.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/relab/benor"
	"github.com/relab/benor/consensus"
	"github.com/relab/benor/internal/config"
	"github.com/relab/benor/logging"
	"github.com/relab/benor/metrics"
	"github.com/relab/benor/network"
	"github.com/relab/benor/readiness"
)

// DefaultPollInterval is the interval between state polls while waiting for the nodes to settle.
const DefaultPollInterval = 20 * time.Millisecond

// Cluster is a network of nodes served over HTTP on localhost.
type Cluster struct {
	cfg       *config.Config
	logger    logging.Logger
	recorder  *metrics.Recorder
	tracker   *readiness.Tracker
	client    *network.Client
	addrs     network.Addresses
	listeners map[benor.ID]net.Listener

	nodes   []*consensus.Node
	senders []*network.Sender
	servers []*network.Server

	wg       sync.WaitGroup
	serveMut sync.Mutex
	serveErr error
}

// New creates the nodes of a cluster and binds their listeners.
// Measurements are written to logger. The nodes are not served until Run is called.
func New(cfg *config.Config, logger metrics.Logger) (_ *Cluster, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Cluster{
		cfg:       cfg,
		logger:    logging.New("cluster"),
		recorder:  metrics.NewRecorder(logger),
		tracker:   readiness.New(cfg.Nodes),
		listeners: make(map[benor.ID]net.Listener),
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, c.closeListeners())
		}
	}()

	c.addrs, err = c.listen()
	if err != nil {
		return nil, err
	}
	c.client = network.NewClient(c.addrs, network.DefaultSendTimeout)

	for _, id := range c.addrs.IDs() {
		registry := prometheus.NewRegistry()
		m := network.NewMetrics(registry, id)

		senderOpts := []network.SenderOption{
			network.WithSenderLogger(logging.New(fmt.Sprintf("sender%d", id))),
			network.WithSendMetrics(m),
		}
		if cfg.SendRate > 0 {
			senderOpts = append(senderOpts, network.WithRateLimit(rate.Limit(cfg.SendRate), 1))
		}
		sender := network.NewSender(id, c.addrs, senderOpts...)

		node, err := consensus.New(id, cfg.NodeOptions(id), sender,
			consensus.WithLogger(logging.New(fmt.Sprintf("node%d", id))),
			consensus.WithCoin(consensus.NewRandomCoin(cfg.Seed+int64(id))),
			consensus.WithReadiness(c.tracker),
			consensus.WithCluster(c.client),
			consensus.WithEventHandler(c.recorder.HandleEvent),
			consensus.WithEventHandler(m.HandleEvent),
		)
		if err != nil {
			sender.Close()
			c.closeSenders()
			return nil, err
		}
		c.nodes = append(c.nodes, node)
		c.senders = append(c.senders, sender)
		c.servers = append(c.servers, network.NewServer(node,
			network.WithServerLogger(logging.New(fmt.Sprintf("server%d", id))),
			network.WithMetrics(m, registry),
		))
	}
	return c, nil
}

// listen binds a listener for every node. With a base port of zero, free ports are chosen.
func (c *Cluster) listen() (network.Addresses, error) {
	addrs := make(network.Addresses, c.cfg.Nodes)
	for i := 0; i < c.cfg.Nodes; i++ {
		id := benor.ID(i)
		addr := "localhost:0"
		if c.cfg.BasePort != 0 {
			addr = fmt.Sprintf("localhost:%d", c.cfg.BasePort+i)
		}
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}
		c.listeners[id] = l
		addrs[id] = l.Addr().String()
	}
	return addrs, nil
}

// Addresses returns the addresses the nodes are served on.
func (c *Cluster) Addresses() network.Addresses {
	return c.addrs
}

// Recorder returns the recorder that receives the events of every node.
func (c *Cluster) Recorder() *metrics.Recorder {
	return c.recorder
}

// Run serves every node, starts the protocol on all of them and waits until
// every non-faulty node has either decided or given up. The nodes are stopped
// before Run returns the final state of each node, indexed by ID.
func (c *Cluster) Run(ctx context.Context) ([]benor.NodeState, error) {
	c.serve()

	start := time.Now()
	if err := c.startAll(ctx); err != nil {
		return nil, err
	}

	states, err := c.waitSettled(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Infof("nodes settled after %v", time.Since(start))

	stopCtx, cancel := context.WithTimeout(context.Background(), consensus.DefaultStopTimeout)
	defer cancel()
	if err := consensus.StopAll(stopCtx, c.client); err != nil {
		c.logger.Warnf("failed to stop every node: %v", err)
	}
	return c.collect(stopCtx, states)
}

func (c *Cluster) serve() {
	for i, server := range c.servers {
		id := benor.ID(i)
		l := c.listeners[id]
		c.wg.Add(1)
		go func(server *network.Server) {
			defer c.wg.Done()
			if err := server.Serve(l); err != nil {
				c.serveMut.Lock()
				c.serveErr = multierr.Append(c.serveErr, fmt.Errorf("node %d: %w", id, err))
				c.serveMut.Unlock()
			}
		}(server)
		c.tracker.MarkReady(id)
	}
}

// startAll sends a start request to every node concurrently.
func (c *Cluster) startAll(ctx context.Context) (err error) {
	var (
		wg  sync.WaitGroup
		mut sync.Mutex
	)
	for _, id := range c.addrs.IDs() {
		wg.Add(1)
		go func(id benor.ID) {
			defer wg.Done()
			if startErr := c.client.Start(ctx, id); startErr != nil {
				mut.Lock()
				err = multierr.Append(err, startErr)
				mut.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return err
}

// waitSettled polls the nodes until every one of them is settled.
func (c *Cluster) waitSettled(ctx context.Context) ([]benor.NodeState, error) {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()
	for {
		states, err := c.states(ctx)
		if err == nil && allSettled(states) {
			return states, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for nodes to settle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Cluster) states(ctx context.Context) ([]benor.NodeState, error) {
	ids := c.addrs.IDs()
	states := make([]benor.NodeState, len(ids))
	for i, id := range ids {
		state, err := c.client.State(ctx, id)
		if err != nil {
			return nil, err
		}
		states[i] = state
	}
	return states, nil
}

// collect returns the states of the stopped nodes. A node that cannot be
// reached keeps the state it had when the nodes settled.
func (c *Cluster) collect(ctx context.Context, last []benor.NodeState) ([]benor.NodeState, error) {
	states, err := c.states(ctx)
	if err != nil {
		c.logger.Warnf("failed to read final states: %v", err)
		return last, nil
	}
	return states, nil
}

// allSettled returns true if no node needs further rounds to finish.
func allSettled(states []benor.NodeState) bool {
	for _, state := range states {
		if !settled(state) {
			return false
		}
	}
	return true
}

func settled(state benor.NodeState) bool {
	switch {
	case state.Killed:
		return true
	case state.IsDecided():
		return true
	case state.K != nil && state.X == nil:
		// reached the round limit without deciding
		return true
	}
	return false
}

// Close stops the senders and servers of every node.
// Keep-alive connections of the clients are closed before the servers shut down.
func (c *Cluster) Close(ctx context.Context) (err error) {
	for _, node := range c.nodes {
		node.Stop()
	}
	c.closeSenders()
	c.client.Close()
	for _, server := range c.servers {
		err = multierr.Append(err, server.Shutdown(ctx))
	}
	c.wg.Wait()
	err = multierr.Append(err, c.closeListeners())
	c.serveMut.Lock()
	defer c.serveMut.Unlock()
	return multierr.Append(err, c.serveErr)
}

func (c *Cluster) closeSenders() {
	for _, sender := range c.senders {
		sender.Close()
	}
}

// closeListeners closes listeners that were not already closed by their server.
func (c *Cluster) closeListeners() (err error) {
	for id, l := range c.listeners {
		if closeErr := l.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("node %d: %w", id, closeErr))
		}
	}
	return err
}
