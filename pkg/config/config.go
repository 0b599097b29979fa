// Package config holds the settings shared by the binaries.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/JFDuval/flexsea-v2/pkg/bus/gpio"
	"github.com/JFDuval/flexsea-v2/pkg/comm"
	"github.com/JFDuval/flexsea-v2/pkg/transport/serial"
)

// Duration is a time.Duration written as "40ms" in files.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Channel is a peripheral on the bus.
type Channel struct {
	Name string `toml:"name"`
	// Index of the transceiver, see Bus.
	Index int `toml:"index"`
	// Command used by the stress test.
	Command int `toml:"command"`
}

// Config defines the settings of a session.
type Config struct {
	// Port is a serial device, or a tcp:// or ws:// URL of a serial server.
	Port            string      `toml:"port"`
	BaudRate        int         `toml:"baud_rate"`
	Timeout         Duration    `toml:"timeout"`
	MaxRetries      int         `toml:"max_retries"`
	PollInterval    Duration    `toml:"poll_interval"`
	MaxEncodedBytes int         `toml:"max_encoded_bytes"`
	RingSize        int         `toml:"ring_size"`
	MQTTURL         string      `toml:"mqtt_url"`
	Board           string      `toml:"board"`
	Bus             gpio.Config `toml:"bus"`
	Channels        []Channel   `toml:"channel"`
}

var defaultConfig = Config{
	Port:            "/dev/ttyACM0",
	BaudRate:        serial.DefaultBaudRate,
	Timeout:         Duration{comm.DefaultTimeout},
	PollInterval:    Duration{comm.DefaultPollInterval},
	MaxEncodedBytes: comm.DefaultMaxEncodedBytes,
	RingSize:        comm.DefaultRingSize,
	MQTTURL:         "mqtt://localhost:1883/flexsea/",
	Board:           "fx-host",
}

var configFile string

func init() {
	if val := os.Getenv("FLEXSEA_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("FLEXSEA_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("FLEXSEA_CONFIG"); val != "" {
		configFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "TOML config file, its values override flags.")
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port, tcp://host:port or ws:// URL.")
	flag.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Serial baud rate.")
	flag.DurationVar(&defaultConfig.Timeout.Duration, "timeout", defaultConfig.Timeout.Duration, "Reply timeout before resending.")
	flag.IntVar(&defaultConfig.MaxRetries, "max-retries", defaultConfig.MaxRetries, "Retransmissions before giving up, 0 for unlimited.")
	flag.IntVar(&defaultConfig.MaxEncodedBytes, "frame-size", defaultConfig.MaxEncodedBytes, "Max encoded frame size of the peer (48 for v1).")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Channels = append([]Channel(nil), defaultConfig.Channels...)
	return &conf
}

// Load creates a config with defaults, overlaid with the file from the
// -config flag if any.
func Load() (*Config, error) {
	conf := NewConfig()
	if configFile == "" {
		return conf, conf.Validate()
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadFile overlays the values defined in a TOML file.
func (c *Config) LoadFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for n, key := range undecoded {
			keys[n] = key.String()
		}
		return fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return c.Validate()
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port not specified")
	}
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("invalid timeout %v", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries %d", c.MaxRetries)
	}
	if err := comm.CheckMaxEncodedBytes(c.MaxEncodedBytes); err != nil {
		return err
	}
	if c.RingSize < c.MaxEncodedBytes {
		return fmt.Errorf("ring size %d smaller than a frame", c.RingSize)
	}
	if len(c.Board) > comm.MaxBoardName {
		return fmt.Errorf("board name %q too long", c.Board)
	}
	if len(c.Bus.Pairs) > 0 {
		if err := c.Bus.Validate(); err != nil {
			return err
		}
	}
	names := make(map[string]bool)
	for _, ch := range c.Channels {
		if names[ch.Name] {
			return fmt.Errorf("channel %q defined twice", ch.Name)
		}
		names[ch.Name] = true
		if ch.Index < 0 || (len(c.Bus.Pairs) > 0 && ch.Index >= len(c.Bus.Pairs)) {
			return fmt.Errorf("channel %q: no transceiver %d", ch.Name, ch.Index)
		}
		if !comm.Command(ch.Command).IsValid() || ch.Command < 0 {
			return fmt.Errorf("channel %q: invalid command %d", ch.Name, ch.Command)
		}
	}
	return nil
}

// ChannelConfig returns the settings of comm.Channel.
func (c *Config) ChannelConfig() comm.ChannelConfig {
	return comm.ChannelConfig{
		Timeout:         c.Timeout.Duration,
		MaxRetries:      c.MaxRetries,
		PollInterval:    c.PollInterval.Duration,
		MaxEncodedBytes: c.MaxEncodedBytes,
		RingSize:        c.RingSize,
	}
}
