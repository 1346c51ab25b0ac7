package peers

import (
	"fmt"
	"net"
	"net/url"
	"sync/atomic"
)

const uriScheme = "udp"

// Neighbor is a node we gossip with.
type Neighbor struct {
	Address string

	all     int64
	new     int64
	invalid int64
}

// NewNeighbor ...
func NewNeighbor(address string) *Neighbor {
	return &Neighbor{Address: address}
}

// IncAll counts a transaction received from the neighbor.
func (n *Neighbor) IncAll() { atomic.AddInt64(&n.all, 1) }

// IncNew counts a received transaction that was not in the store yet.
func (n *Neighbor) IncNew() { atomic.AddInt64(&n.new, 1) }

// IncInvalid counts a received packet that could not be decoded.
func (n *Neighbor) IncInvalid() { atomic.AddInt64(&n.invalid, 1) }

// Info returns a copy of the counters.
func (n *Neighbor) Info() NeighborInfo {
	return NeighborInfo{
		Address:                     n.Address,
		NumberOfAllTransactions:     atomic.LoadInt64(&n.all),
		NumberOfNewTransactions:     atomic.LoadInt64(&n.new),
		NumberOfInvalidTransactions: atomic.LoadInt64(&n.invalid),
	}
}

// NeighborInfo is the public view of a Neighbor.
type NeighborInfo struct {
	Address                     string `json:"address"`
	NumberOfAllTransactions     int64  `json:"numberOfAllTransactions"`
	NumberOfNewTransactions     int64  `json:"numberOfNewTransactions"`
	NumberOfInvalidTransactions int64  `json:"numberOfInvalidTransactions"`
}

// ParseURI turns a udp://host:port URI into the ip:port address datagrams
// from that neighbor come from.
func ParseURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != uriScheme {
		return "", fmt.Errorf("invalid neighbor uri %q, expected %s://host:port", uri, uriScheme)
	}
	if u.Port() == "" {
		return "", fmt.Errorf("neighbor uri %q has no port", uri)
	}
	addr, err := net.ResolveUDPAddr("udp", u.Host)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}
