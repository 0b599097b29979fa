package bus

import (
	"fmt"
	"sync"
)

// LineWrite is one recorded write of a Fake.
type LineWrite struct {
	Channel  int
	Transmit bool // false for the receive line
	Enabled  bool
}

// Fake records line states in memory.
type Fake struct {
	TX      []bool
	RX      []bool
	History []LineWrite
	// Err, if set, is returned by every write.
	Err error

	lock sync.Mutex
}

// NewFake creates a Fake with n channels.
func NewFake(n int) *Fake {
	return &Fake{TX: make([]bool, n), RX: make([]bool, n)}
}

// Channels implements Transceivers.
func (f *Fake) Channels() int {
	return len(f.TX)
}

// SetTransmitEnable implements Transceivers.
func (f *Fake) SetTransmitEnable(ch int, enabled bool) error {
	return f.set(ch, true, enabled)
}

// SetReceiveEnable implements Transceivers.
func (f *Fake) SetReceiveEnable(ch int, enabled bool) error {
	return f.set(ch, false, enabled)
}

func (f *Fake) set(ch int, transmit, enabled bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if ch < 0 || ch >= len(f.TX) {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	if transmit {
		f.TX[ch] = enabled
	} else {
		f.RX[ch] = enabled
	}
	f.History = append(f.History, LineWrite{Channel: ch, Transmit: transmit, Enabled: enabled})
	return nil
}

// Lines returns a copy of the line states.
func (f *Fake) Lines() (tx, rx []bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]bool(nil), f.TX...), append([]bool(nil), f.RX...)
}

// Noop has a single channel without control lines, for point-to-point links.
type Noop struct{}

// Channels implements Transceivers.
func (Noop) Channels() int { return 1 }

// SetTransmitEnable implements Transceivers.
func (Noop) SetTransmitEnable(int, bool) error { return nil }

// SetReceiveEnable implements Transceivers.
func (Noop) SetReceiveEnable(int, bool) error { return nil }
