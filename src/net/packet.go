package net

import (
	"fmt"

	"github.com/mosaicnetworks/tangle/src/model"
)

// PacketSize is the size of a gossip packet: a packed transaction followed by
// the hash of a transaction requested from the receiver.
const PacketSize = model.Size + model.HashSize

// Packet is the decoded form of a gossip datagram.
type Packet struct {
	Transaction []byte
	Requested   model.Hash
}

// NewPacket ...
func NewPacket(transaction []byte, requested model.Hash) *Packet {
	return &Packet{
		Transaction: transaction,
		Requested:   requested,
	}
}

// Marshal encodes the packet into PacketSize bytes.
func (p *Packet) Marshal() []byte {
	buf := make([]byte, PacketSize)
	copy(buf[:model.Size], p.Transaction)
	copy(buf[model.Size:], p.Requested[:])
	return buf
}

// Unmarshal decodes a datagram. It fails unless data is exactly PacketSize
// bytes long.
func (p *Packet) Unmarshal(data []byte) error {
	if len(data) != PacketSize {
		return fmt.Errorf("invalid packet size %d, expected %d", len(data), PacketSize)
	}
	p.Transaction = make([]byte, model.Size)
	copy(p.Transaction, data[:model.Size])
	p.Requested = model.HashFromBytes(data[model.Size:])
	return nil
}
