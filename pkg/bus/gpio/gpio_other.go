//go:build !linux

package gpio

// Lines is not supported on this platform.
type Lines struct{}

// Open fails with ErrUnavailable once config is valid.
func Open(config Config) (*Lines, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}

// Channels implements bus.Transceivers.
func (l *Lines) Channels() int { return 0 }

// SetTransmitEnable implements bus.Transceivers.
func (l *Lines) SetTransmitEnable(int, bool) error { return ErrUnavailable }

// SetReceiveEnable implements bus.Transceivers.
func (l *Lines) SetReceiveEnable(int, bool) error { return ErrUnavailable }

// SetLines implements bus.BatchTransceivers.
func (l *Lines) SetLines(tx, rx []bool) error { return ErrUnavailable }

// Close implements io.Closer.
func (l *Lines) Close() error { return nil }
