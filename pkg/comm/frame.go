package comm

import "fmt"

// Command is the 6-bit command code of a frame.
type Command uint8

// Reserved command codes.
const (
	// CmdWhoAmI queries the identity of the peer.
	CmdWhoAmI Command = 0
	// CmdAck acknowledges a previously received frame.
	CmdAck Command = 1

	// MaxCommand is the highest command code.
	MaxCommand Command = 63
)

// IsValid checks if the code fits in 6 bits.
func (c Command) IsValid() bool {
	return c <= MaxCommand
}

// Mode tells whether the sender expects a reply.
type Mode uint8

// Modes, as encoded in the 2 LSBs of the command byte.
const (
	ModeInvalid Mode = iota
	ModeRead
	ModeWrite
	ModeReadWrite
)

// ExpectsReply indicates the peer is supposed to answer the frame.
func (m Mode) ExpectsReply() bool {
	return m == ModeRead || m == ModeReadWrite
}

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "R"
	case ModeWrite:
		return "W"
	case ModeReadWrite:
		return "RW"
	}
	return "invalid"
}

// ParseMode parses the names used by String, plus the long forms.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "R", "r", "read", "Read":
		return ModeRead, nil
	case "W", "w", "write", "Write":
		return ModeWrite, nil
	case "RW", "rw", "readwrite", "ReadWrite":
		return ModeReadWrite, nil
	}
	return ModeInvalid, fmt.Errorf("unknown mode %q", s)
}

// Ack flags acknowledgment frames.
type Ack uint8

// Ack values.
const (
	Nack Ack = 0
	Acked Ack = 1
)

// Sequence is the 15-bit packet counter.
type Sequence uint16

// MaxSequence is the highest sequence number before wrapping.
const MaxSequence Sequence = 0x7fff

// Next calculates the next sequence number.
func (s Sequence) Next() Sequence {
	if s >= MaxSequence {
		return 0
	}
	return s + 1
}

// Frame is a decoded protocol message.
type Frame struct {
	Command Command
	Mode    Mode
	Ack     Ack
	Seq     Sequence
	Payload []byte
}

func (f *Frame) String() string {
	return fmt.Sprintf("cmd=%d mode=%s ack=%d seq=%d len=%d", f.Command, f.Mode, f.Ack, f.Seq, len(f.Payload))
}

// Overhead is the size of the command packet header.
const Overhead = 3

func (f *Frame) validate() error {
	if !f.Command.IsValid() || f.Mode == ModeInvalid || f.Mode > ModeReadWrite {
		return &CommandError{Command: f.Command, Mode: f.Mode}
	}
	return nil
}

// packet returns the unescaped command packet.
func (f *Frame) packet() []byte {
	b := make([]byte, Overhead+len(f.Payload))
	b[0] = byte(f.Command)<<2 | byte(f.Mode)&3
	b[1] = byte(f.Ack&1)<<7 | byte(f.Seq>>8)&0x7f
	b[2] = byte(f.Seq)
	copy(b[Overhead:], f.Payload)
	return b
}

func parsePacket(b []byte) (*Frame, error) {
	if len(b) < Overhead {
		return nil, malformed("command packet of %d bytes", len(b))
	}
	f := &Frame{
		Command: Command(b[0] >> 2),
		Mode:    Mode(b[0] & 3),
		Ack:     Ack(b[1] >> 7),
		Seq:     Sequence(b[1]&0x7f)<<8 | Sequence(b[2]),
	}
	if f.Mode == ModeInvalid {
		return nil, malformed("invalid mode for command %d", f.Command)
	}
	if len(b) > Overhead {
		f.Payload = make([]byte, len(b)-Overhead)
		copy(f.Payload, b[Overhead:])
	}
	return f, nil
}

// AckPayload builds the payload of an ACK frame for the frame received with
// cmd and seq.
func AckPayload(cmd Command, seq Sequence) []byte {
	return []byte{byte(cmd), byte(seq), 0x80 | byte(seq>>8)&0x7f}
}

// ParseAck extracts the acknowledged command and sequence from an ACK frame.
func ParseAck(f *Frame) (Command, Sequence, bool) {
	if f.Command != CmdAck || len(f.Payload) < 3 {
		return 0, 0, false
	}
	return Command(f.Payload[0]), Sequence(f.Payload[2]&0x7f)<<8 | Sequence(f.Payload[1]), true
}
