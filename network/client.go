package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relab/benor"
)

// Client queries and controls nodes over HTTP. It implements consensus.Cluster.
type Client struct {
	addrs  Addresses
	client *http.Client
}

// NewClient returns a client for the nodes at the given addresses.
// A zero timeout means requests are only bounded by their context.
func NewClient(addrs Addresses, timeout time.Duration) *Client {
	return &Client{
		addrs:  addrs,
		client: &http.Client{Timeout: timeout},
	}
}

// Close closes the idle connections kept by the client.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// IDs returns the IDs of all nodes known to the client.
func (c *Client) IDs() []benor.ID {
	return c.addrs.IDs()
}

// Status returns nil if the node is live, and an error wrapping benor.ErrFaulty if it is faulty.
func (c *Client) Status(ctx context.Context, id benor.ID) error {
	code, body, err := c.do(ctx, http.MethodGet, id, "/status", nil)
	if err != nil {
		return err
	}
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusInternalServerError && strings.TrimSpace(string(body)) == "faulty":
		return fmt.Errorf("node %d: %w", id, benor.ErrFaulty)
	}
	return statusError(id, "/status", code, body)
}

// State returns the state of the node with the given ID.
func (c *Client) State(ctx context.Context, id benor.ID) (benor.NodeState, error) {
	var state benor.NodeState
	code, body, err := c.do(ctx, http.MethodGet, id, "/getState", nil)
	if err != nil {
		return state, err
	}
	if code != http.StatusOK {
		return state, statusError(id, "/getState", code, body)
	}
	if err := json.Unmarshal(body, &state); err != nil {
		return state, fmt.Errorf("node %d: failed to decode state: %w", id, err)
	}
	return state, nil
}

// Start triggers round 1 on the node. It blocks until every node is ready.
func (c *Client) Start(ctx context.Context, id benor.ID) error {
	code, body, err := c.do(ctx, http.MethodGet, id, "/start", nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(id, "/start", code, body)
	}
	return nil
}

// Stop kills the node with the given ID.
func (c *Client) Stop(ctx context.Context, id benor.ID) error {
	code, body, err := c.do(ctx, http.MethodGet, id, "/stop", nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(id, "/stop", code, body)
	}
	return nil
}

// Send delivers msg to the node with the given ID.
// It returns an error wrapping benor.ErrInactive if the node does not take part in the protocol.
func (c *Client) Send(ctx context.Context, id benor.ID, msg benor.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	code, body, err := c.do(ctx, http.MethodPost, id, "/message", b)
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusServiceUnavailable:
		return fmt.Errorf("node %d: %w", id, benor.ErrInactive)
	case http.StatusBadRequest:
		return fmt.Errorf("node %d: %w: %s", id, benor.ErrMalformedMessage, strings.TrimSpace(string(body)))
	}
	return statusError(id, "/message", code, body)
}

func (c *Client) do(ctx context.Context, method string, id benor.ID, path string, body []byte) (int, []byte, error) {
	url, err := c.addrs.URL(id, path)
	if err != nil {
		return 0, nil, err
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("node %d: %w", id, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("node %d: failed to read response: %w", id, err)
	}
	return resp.StatusCode, b, nil
}

func statusError(id benor.ID, path string, code int, body []byte) error {
	return fmt.Errorf("node %d: %s: unexpected status %d: %s", id, path, code, strings.TrimSpace(string(body)))
}
