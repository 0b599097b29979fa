// Package gpio drives transceiver enable lines through the GPIO character device.
package gpio

import (
	"errors"
	"fmt"
)

// ErrUnavailable indicates the GPIO chip can't be used on this host.
var ErrUnavailable = errors.New("gpio unavailable")

// Pair holds the line offsets of one transceiver.
type Pair struct {
	TX int `toml:"tx"`
	RX int `toml:"rx"`
}

// Config describes the GPIO lines.
type Config struct {
	Chip  string `toml:"chip"`
	Pairs []Pair `toml:"pairs"`
	// InvertRX drives receive enables low when enabled, for active-low RE inputs.
	InvertRX bool `toml:"invert_rx"`
}

// Validate checks the lines are unique.
func (c *Config) Validate() error {
	if c.Chip == "" {
		return fmt.Errorf("gpio chip not specified")
	}
	seen := make(map[int]bool)
	for _, p := range c.Pairs {
		for _, off := range []int{p.TX, p.RX} {
			if off < 0 {
				return fmt.Errorf("invalid gpio line %d", off)
			}
			if seen[off] {
				return fmt.Errorf("gpio line %d used twice", off)
			}
			seen[off] = true
		}
	}
	return nil
}

// offsets lists the lines as requested: TX and RX of channel 0, then channel 1...
func (c *Config) offsets() []int {
	offsets := make([]int, 0, len(c.Pairs)*2)
	for _, p := range c.Pairs {
		offsets = append(offsets, p.TX, p.RX)
	}
	return offsets
}

// values computes the line levels for the enables.
func (c *Config) values(tx, rx []bool) []int {
	v := make([]int, len(c.Pairs)*2)
	for ch := range c.Pairs {
		if ch < len(tx) && tx[ch] {
			v[ch*2] = 1
		}
		if ch < len(rx) && rx[ch] != c.InvertRX {
			v[ch*2+1] = 1
		}
	}
	return v
}
