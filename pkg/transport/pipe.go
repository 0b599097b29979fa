// Package transport provides byte links for comm.Channel.
package transport

import (
	"io"
	"sync"
)

// End is one side of an in-memory pipe. Writes are immediately buffered on
// the other side.
type End struct {
	peer   *End
	inbox  []byte
	closed bool
	lock   *sync.Mutex
}

// NewPipe creates a connected pair of Ends.
func NewPipe() (*End, *End) {
	lock := &sync.Mutex{}
	a, b := &End{lock: lock}, &End{lock: lock}
	a.peer, b.peer = b, a
	return a, b
}

// Write implements io.Writer.
func (e *End) Write(p []byte) (int, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed || e.peer.closed {
		return 0, io.ErrClosedPipe
	}
	e.peer.inbox = append(e.peer.inbox, p...)
	return len(p), nil
}

// Buffered implements comm.Transport.
func (e *End) Buffered() (int, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if len(e.inbox) == 0 && (e.closed || e.peer.closed) {
		return 0, io.EOF
	}
	return len(e.inbox), nil
}

// ReadByte implements io.ByteReader.
func (e *End) ReadByte() (byte, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if len(e.inbox) == 0 {
		return 0, io.EOF
	}
	b := e.inbox[0]
	e.inbox = e.inbox[1:]
	return b, nil
}

// ResetBuffers drops unread bytes.
func (e *End) ResetBuffers() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.inbox = nil
	return nil
}

// Close closes this side. The peer still reads what was written before.
func (e *End) Close() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.closed = true
	return nil
}

// Loopback is a transport receiving what it writes.
type Loopback struct {
	End
}

// NewLoopback creates a Loopback.
func NewLoopback() *Loopback {
	l := &Loopback{End: End{lock: &sync.Mutex{}}}
	l.peer = &l.End
	return l
}
