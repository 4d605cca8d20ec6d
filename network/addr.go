// Package network exposes consensus nodes over HTTP and lets nodes reach each other.
package network

import (
	"fmt"
	"sort"

	"github.com/relab/benor"
)

// DefaultBasePort is the port of node 0. Node i listens on DefaultBasePort+i.
const DefaultBasePort = 3000

// Addresses maps node IDs to host:port addresses.
type Addresses map[benor.ID]string

// LocalAddresses returns the addresses of n nodes listening on localhost,
// where node i listens on basePort+i.
func LocalAddresses(n, basePort int) Addresses {
	addrs := make(Addresses, n)
	for i := 0; i < n; i++ {
		addrs[benor.ID(i)] = fmt.Sprintf("localhost:%d", basePort+i)
	}
	return addrs
}

// IDs returns the IDs of all nodes in sorted order.
func (a Addresses) IDs() []benor.ID {
	ids := make([]benor.ID, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// URL returns the URL of the given endpoint of a node.
func (a Addresses) URL(id benor.ID, path string) (string, error) {
	addr, ok := a[id]
	if !ok {
		return "", fmt.Errorf("no address for node %d", id)
	}
	return "http://" + addr + path, nil
}
