// Package peers manages the neighbors of a node.
//
// A neighbor is another node that this node exchanges gossip packets with. It
// is identified by the address it sends datagrams from, so packets from an
// unknown address are ignored. Neighbors are configured statically, through
// the command line or the neighbors.json file in the data directory, and can
// be added or removed at runtime through the service API. Each neighbor keeps
// counters of the transactions it sent us.
package peers
