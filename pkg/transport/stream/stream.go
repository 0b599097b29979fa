// Package stream adapts an io.ReadWriter (TCP, pty, pipes) to comm.Transport.
package stream

import (
	"io"
	"net"
	"os"
	"sync"
)

const readSize = 256

// Transport buffers what a reader goroutine receives from an io.ReadWriter.
type Transport struct {
	rw io.ReadWriter

	pending []byte
	err     error
	lock    sync.Mutex

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// New wraps rw and starts reading from it.
func New(rw io.ReadWriter) *Transport {
	t := &Transport{
		rw:     rw,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Dial connects to a serial server, e.g. ser2net.
func Dial(network, address string) (*Transport, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

func (t *Transport) readLoop() {
	defer close(t.doneCh)
	buf := make([]byte, readSize)
	for {
		n, err := t.rw.Read(buf)
		if err != nil && os.IsTimeout(err) {
			err = nil
		}
		t.lock.Lock()
		t.pending = append(t.pending, buf[:n]...)
		t.err = err
		t.lock.Unlock()
		if err != nil {
			return
		}
		select {
		case <-t.stopCh:
			return
		default:
		}
	}
}

// Write implements io.Writer.
func (t *Transport) Write(p []byte) (int, error) {
	return t.rw.Write(p)
}

// Buffered implements comm.Transport. The read error is reported once
// everything before it was consumed.
func (t *Transport) Buffered() (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.pending) == 0 && t.err != nil {
		return 0, t.err
	}
	return len(t.pending), nil
}

// ReadByte implements io.ByteReader.
func (t *Transport) ReadByte() (byte, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.pending) == 0 {
		if t.err != nil {
			return 0, t.err
		}
		return 0, io.EOF
	}
	b := t.pending[0]
	t.pending = t.pending[1:]
	return b, nil
}

// ResetBuffers drops received bytes not read yet.
func (t *Transport) ResetBuffers() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.pending = nil
	return nil
}

// Done is closed when the reader goroutine exits.
func (t *Transport) Done() <-chan struct{} {
	return t.doneCh
}

// Close stops reading and closes the underlying stream if it's an io.Closer.
func (t *Transport) Close() (err error) {
	t.closeOnce.Do(func() {
		close(t.stopCh)
		if closer, ok := t.rw.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return
}
