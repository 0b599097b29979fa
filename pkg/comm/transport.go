package comm

import "io"

// Transport is the byte link under a Channel.
type Transport interface {
	io.Writer
	// Buffered returns the number of received bytes readable without blocking.
	Buffered() (int, error)
	// ReadByte reads one received byte. It's only called for buffered bytes.
	ReadByte() (byte, error)
	// ResetBuffers drops pending input and output.
	ResetBuffers() error
}

// Selector prepares a shared medium before a Channel writes to it.
type Selector interface {
	Select() error
}

// SelectorFunc is func type of Selector.
type SelectorFunc func() error

// Select implements Selector.
func (f SelectorFunc) Select() error {
	return f()
}
