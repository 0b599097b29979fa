//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "flexsea"

// Lines controls the transceivers of Config.
type Lines struct {
	config Config
	req    *gpiocdev.Lines
	tx, rx []bool
	lock   sync.Mutex
}

// Open requests the lines as outputs with every transceiver disabled.
func Open(config Config) (*Lines, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := gpiocdev.IsChip(config.Chip); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, config.Chip, err)
	}
	l := &Lines{
		config: config,
		tx:     make([]bool, len(config.Pairs)),
		rx:     make([]bool, len(config.Pairs)),
	}
	req, err := gpiocdev.RequestLines(config.Chip, config.offsets(),
		gpiocdev.AsOutput(config.values(l.tx, l.rx)...),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	l.req = req
	return l, nil
}

// Channels implements bus.Transceivers.
func (l *Lines) Channels() int {
	return len(l.config.Pairs)
}

// SetTransmitEnable implements bus.Transceivers.
func (l *Lines) SetTransmitEnable(ch int, enabled bool) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if ch < 0 || ch >= len(l.tx) {
		return fmt.Errorf("invalid channel %d", ch)
	}
	l.tx[ch] = enabled
	return l.req.SetValues(l.config.values(l.tx, l.rx))
}

// SetReceiveEnable implements bus.Transceivers.
func (l *Lines) SetReceiveEnable(ch int, enabled bool) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if ch < 0 || ch >= len(l.rx) {
		return fmt.Errorf("invalid channel %d", ch)
	}
	l.rx[ch] = enabled
	return l.req.SetValues(l.config.values(l.tx, l.rx))
}

// SetLines implements bus.BatchTransceivers.
func (l *Lines) SetLines(tx, rx []bool) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	copy(l.tx, tx)
	copy(l.rx, rx)
	return l.req.SetValues(l.config.values(l.tx, l.rx))
}

// Close releases the lines.
func (l *Lines) Close() error {
	return l.req.Close()
}
