// Package bus arbitrates half-duplex transceivers sharing one UART.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/JFDuval/flexsea-v2/pkg/bus/gpio"
	"github.com/JFDuval/flexsea-v2/pkg/comm"
	fx "github.com/JFDuval/flexsea-v2/pkg/framework"
)

var (
	// ErrInvalidChannel indicates a channel index out of range.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrUnavailable indicates transceiver control lines can't be used.
	ErrUnavailable = gpio.ErrUnavailable
)

// Transceivers controls the enable lines of the bus transceivers.
type Transceivers interface {
	// Channels returns the number of transceivers.
	Channels() int
	SetTransmitEnable(ch int, enabled bool) error
	SetReceiveEnable(ch int, enabled bool) error
}

// BatchTransceivers updates all the lines in a single write.
type BatchTransceivers interface {
	Transceivers
	// SetLines sets transmit and receive enables of every channel, indexed by channel.
	SetLines(tx, rx []bool) error
}

// Arbiter keeps exactly one transceiver active.
type Arbiter struct {
	lines  Transceivers
	active int
	lock   sync.Mutex
}

// NewArbiter creates an Arbiter. No channel is active until UseChannel.
func NewArbiter(lines Transceivers) *Arbiter {
	return &Arbiter{lines: lines, active: -1}
}

// Channels returns the number of channels.
func (a *Arbiter) Channels() int {
	return a.lines.Channels()
}

// Active returns the active channel, -1 if none.
func (a *Arbiter) Active() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.active
}

// UseChannel disables every transceiver then enables channel ch.
func (a *Arbiter) UseChannel(ch int) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	n := a.lines.Channels()
	if ch < 0 || ch >= n {
		return fmt.Errorf("%w: %d, %d channels", ErrInvalidChannel, ch, n)
	}
	if ch == a.active {
		return nil
	}
	// a failed switch leaves the bus in an unknown state
	a.active = -1
	if batch, ok := a.lines.(BatchTransceivers); ok {
		tx, rx := make([]bool, n), make([]bool, n)
		tx[ch], rx[ch] = true, true
		if err := batch.SetLines(tx, rx); err != nil {
			return err
		}
	} else {
		if err := a.disableAll(n); err != nil {
			return err
		}
		var errs fx.AggregatedError
		errs.Add(a.lines.SetTransmitEnable(ch, true), a.lines.SetReceiveEnable(ch, true))
		if err := errs.Aggregate(); err != nil {
			return err
		}
	}
	glog.V(2).Infof("bus channel %d active", ch)
	a.active = ch
	return nil
}

func (a *Arbiter) disableAll(n int) error {
	var errs fx.AggregatedError
	for i := 0; i < n; i++ {
		errs.Add(a.lines.SetTransmitEnable(i, false), a.lines.SetReceiveEnable(i, false))
	}
	return errs.Aggregate()
}

// Release disables every transceiver.
func (a *Arbiter) Release() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.active = -1
	n := a.lines.Channels()
	if batch, ok := a.lines.(BatchTransceivers); ok {
		return batch.SetLines(make([]bool, n), make([]bool, n))
	}
	return a.disableAll(n)
}

// Selector returns a comm.Selector activating ch before each transmission.
func (a *Arbiter) Selector(ch int) comm.Selector {
	return comm.SelectorFunc(func() error {
		return a.UseChannel(ch)
	})
}

// Close releases the bus and closes the lines if they are an io.Closer.
func (a *Arbiter) Close() error {
	var errs fx.AggregatedError
	errs.Add(a.Release())
	if closer, ok := a.lines.(interface{ Close() error }); ok {
		errs.Add(closer.Close())
	}
	return errs.Aggregate()
}
