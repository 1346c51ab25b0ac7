// Package tangle assembles the components of a tangle node: the transaction
// store, the milestone tracker, the tip selector, the gossip node with its UDP
// transport, and the HTTP API service.
package tangle
