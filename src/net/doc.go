// Package net implements the transports used to gossip transactions between
// neighbors.
//
// Every message is a fixed-size Packet: a packed transaction followed by the
// hash of a transaction the sender asks for. There are two implementations of
// the Transport interface:
//
// - Inmem: in-memory transport used only for testing
//
// - UDP: one datagram per packet, with no acknowledgement or retransmission.
// Lost packets are recovered by the request mechanism of the gossip protocol,
// which keeps asking neighbors for missing transactions.
package net
