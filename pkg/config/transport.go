package config

import (
	"net/url"
	"strings"

	"github.com/JFDuval/flexsea-v2/pkg/bus"
	"github.com/JFDuval/flexsea-v2/pkg/comm"
	"github.com/JFDuval/flexsea-v2/pkg/transport/serial"
	"github.com/JFDuval/flexsea-v2/pkg/transport/stream"
	"github.com/JFDuval/flexsea-v2/pkg/transport/websocket"
)

// OpenTransport opens Port according to its form.
func (c *Config) OpenTransport() (comm.Transport, error) {
	switch {
	case strings.HasPrefix(c.Port, "tcp://"):
		u, err := url.Parse(c.Port)
		if err != nil {
			return nil, err
		}
		return stream.Dial("tcp", u.Host)
	case strings.HasPrefix(c.Port, "ws://"), strings.HasPrefix(c.Port, "wss://"):
		origin := "http://localhost/"
		if strings.HasPrefix(c.Port, "wss://") {
			origin = "https://localhost/"
		}
		return websocket.Dial(c.Port, origin)
	}
	return serial.Open(c.Port, c.BaudRate)
}

// OpenBus creates the arbiter of the transceivers, degraded to a single
// channel when the lines are not usable.
func (c *Config) OpenBus() *bus.Arbiter {
	return bus.Open(c.Bus)
}

// NewChannel creates a channel on t for the named peripheral. With a bus
// of several transceivers, the channel selects its own before sending.
func (c *Config) NewChannel(t comm.Transport, arbiter *bus.Arbiter, ch Channel) *comm.Channel {
	channel := comm.NewChannel(t, c.ChannelConfig())
	if arbiter != nil && arbiter.Channels() > 1 {
		channel.Selector = arbiter.Selector(ch.Index)
	}
	return channel
}

// ChannelsOrDefault returns the configured channels, or a single channel
// when none is configured.
func (c *Config) ChannelsOrDefault() []Channel {
	if len(c.Channels) > 0 {
		return c.Channels
	}
	return []Channel{{Name: "ch1", Command: 2}}
}
