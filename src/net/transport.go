package net

import "errors"

// ErrTransportShutdown is returned when operations on a transport are invoked
// after it's been terminated.
var ErrTransportShutdown = errors.New("transport shutdown")

// Datagram is a packet received from another node.
type Datagram struct {
	From string
	Data []byte
}

// Transport provides an interface for network transports to allow a node to
// exchange gossip packets with its neighbors. Delivery is best effort.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel carrying the packets received from other
	// nodes.
	Consumer() <-chan Datagram

	// LocalAddr is used to return our local address
	LocalAddr() string

	// Send sends a packet to target without waiting for any response.
	Send(target string, data []byte) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
