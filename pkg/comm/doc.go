// Package comm provides the FlexSEA serial command protocol.
package comm

// The protocol is spoken between a host (PC, SBC) and embedded peripherals
// over a byte oriented link (UART, RS-485 segment, USB CDC).
//
// A frame is a command packet wrapped in a codec envelope:
//
//	[HEADER][N][escaped command packet][CHECKSUM][FOOTER]
//	command packet: [CMD<<2 | MODE][ACK<<7 | SEQ MSB][SEQ LSB][PAYLOAD...]
//
// Received bytes are absorbed by a RingBuffer and frames are pulled out of it
// by the Codec. Decoded frames are routed by command code through a
// DispatchTable. Channel ties these together and retransmits requests that
// expect a reply until the peer answers.
//
// Channel is single threaded: one goroutine owns it and drives it with Poll
// or Run.
