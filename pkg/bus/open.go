package bus

import (
	"errors"

	"github.com/golang/glog"

	"github.com/JFDuval/flexsea-v2/pkg/bus/gpio"
)

// OpenLines creates an Arbiter over the GPIO lines of config.
// The error wraps ErrUnavailable when the lines can't be requested on this host.
func OpenLines(config gpio.Config) (*Arbiter, error) {
	lines, err := gpio.Open(config)
	if err != nil {
		return nil, err
	}
	glog.Infof("bus arbitration on %s, %d channels", config.Chip, lines.Channels())
	return NewArbiter(lines), nil
}

// Open is OpenLines that never fails: without usable lines the bus degrades
// to a single channel and multi-channel arbitration is disabled.
func Open(config gpio.Config) *Arbiter {
	if len(config.Pairs) == 0 {
		return NewArbiter(Noop{})
	}
	a, err := OpenLines(config)
	if err == nil {
		return a
	}
	if errors.Is(err, ErrUnavailable) {
		glog.Warningf("multi-channel arbitration disabled: %v", err)
	} else {
		glog.Errorf("invalid bus configuration, multi-channel arbitration disabled: %v", err)
	}
	return NewArbiter(Noop{})
}
