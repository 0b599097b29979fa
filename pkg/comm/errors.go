package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCommand indicates a command code or mode which can't be encoded.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrPayloadTooLarge indicates the encoded frame doesn't fit in MaxEncodedBytes.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrBufferFull indicates the ring buffer rejected a byte.
	ErrBufferFull = errors.New("buffer full")
	// ErrIncomplete indicates not enough bytes are buffered to decode a frame.
	// It is not fatal, decoding should be retried when more bytes arrive.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrMalformed indicates a frame candidate failed validation.
	ErrMalformed = errors.New("malformed frame")
	// ErrNoReply indicates the peer never answered a request.
	ErrNoReply = errors.New("no reply")
	// ErrSuperseded indicates a pending request was replaced by a newer one
	// before its reply arrived.
	ErrSuperseded = errors.New("superseded")
	// ErrClosed indicates the channel is closed.
	ErrClosed = errors.New("closed")
)

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// CommandError reports a frame rejected at encode time.
type CommandError struct {
	Command Command
	Mode    Mode
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("invalid command %d mode %s", e.Command, e.Mode)
}

// Unwrap makes errors.Is match ErrInvalidCommand.
func (e *CommandError) Unwrap() error {
	return ErrInvalidCommand
}
