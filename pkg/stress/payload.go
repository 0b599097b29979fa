// Package stress exercises channels with a ramp/counter payload echoed by the peer.
package stress

import (
	"encoding/binary"
	"fmt"
)

// Command codes used by the peripherals on each bus channel.
const (
	CmdStressTest1 = 2
	CmdStressTest2 = 5
)

// RampMax is the highest ramp value before it wraps to 0.
const RampMax = 1000

// PayloadSize is the size of an encoded Payload.
const PayloadSize = 7

// Payload is the stress test frame content, little-endian and packed.
type Payload struct {
	PacketNumber int32
	Ramp         int16
	Reset        bool
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p Payload) MarshalBinary() ([]byte, error) {
	b := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint32(b, uint32(p.PacketNumber))
	binary.LittleEndian.PutUint16(b[4:], uint16(p.Ramp))
	if p.Reset {
		b[6] = 1
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (p *Payload) UnmarshalBinary(b []byte) error {
	if len(b) < PayloadSize {
		return fmt.Errorf("stress payload of %d bytes", len(b))
	}
	p.PacketNumber = int32(binary.LittleEndian.Uint32(b))
	p.Ramp = int16(binary.LittleEndian.Uint16(b[4:]))
	p.Reset = b[6] != 0
	return nil
}

// Counter generates the sequence of payloads.
type Counter struct {
	packet int32
	ramp   int16
}

// NewCounter creates a Counter. The first payload is packet 0, ramp 0.
func NewCounter() *Counter {
	return &Counter{packet: -1, ramp: -1}
}

// Next advances the packet number and the ramp.
func (c *Counter) Next() Payload {
	c.packet++
	if c.ramp++; c.ramp > RampMax {
		c.ramp = 0
	}
	return Payload{PacketNumber: c.packet, Ramp: c.ramp}
}

// Sent returns the number of payloads generated.
func (c *Counter) Sent() int {
	return int(c.packet) + 1
}
