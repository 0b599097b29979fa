package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JFDuval/flexsea-v2/pkg/comm"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "flexsea.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	conf := NewConfig()
	require.NoError(t, conf.Validate())
	cc := conf.ChannelConfig()
	require.Equal(t, comm.DefaultTimeout, cc.Timeout)
	require.Equal(t, comm.DefaultMaxEncodedBytes, cc.MaxEncodedBytes)
	require.Equal(t, comm.DefaultRingSize, cc.RingSize)
	require.Len(t, conf.ChannelsOrDefault(), 1)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
port = "tcp://localhost:4000"
timeout = "15ms"
max_retries = 5
max_encoded_bytes = 48
board = "bench"

[bus]
chip = "gpiochip0"
pairs = [{ tx = 17, rx = 27 }, { tx = 22, rx = 23 }]
invert_rx = true

[[channel]]
name = "stepper"
index = 0
command = 2

[[channel]]
name = "power"
index = 1
command = 5
`)
	conf := NewConfig()
	require.NoError(t, conf.LoadFile(path))
	require.Equal(t, "tcp://localhost:4000", conf.Port)
	require.Equal(t, 15*time.Millisecond, conf.Timeout.Duration)
	require.Equal(t, 5, conf.MaxRetries)
	require.Equal(t, 48, conf.MaxEncodedBytes)
	require.Equal(t, "bench", conf.Board)
	require.Equal(t, comm.DefaultPollInterval, conf.PollInterval.Duration, "undefined keys keep defaults")
	require.True(t, conf.Bus.InvertRX)
	require.Len(t, conf.Bus.Pairs, 2)
	require.Equal(t, 23, conf.Bus.Pairs[1].RX)
	require.Equal(t, []Channel{{Name: "stepper", Index: 0, Command: 2}, {Name: "power", Index: 1, Command: 5}}, conf.Channels)
}

func TestLoadFileErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"syntax", `port = `},
		{"unknown key", `prot = "/dev/ttyUSB0"`},
		{"bad duration", `timeout = "soon"`},
		{"frame size", `max_encoded_bytes = 300`},
		{"channel index", "[[channel]]\nname = \"a\"\nindex = 2\ncommand = 2\n[bus]\nchip = \"gpiochip0\"\npairs = [{ tx = 1, rx = 2 }]"},
		{"channel command", "[[channel]]\nname = \"a\"\ncommand = 64"},
		{"duplicated channel", "[[channel]]\nname = \"a\"\n[[channel]]\nname = \"a\""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			require.Error(t, conf.LoadFile(writeFile(t, tc.content)))
		})
	}
}

func TestDurationText(t *testing.T) {
	d := Duration{40 * time.Millisecond}
	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "40ms", string(text))
	var parsed Duration
	require.NoError(t, parsed.UnmarshalText(text))
	require.Equal(t, d, parsed)
}

func TestOpenTransportMissingPort(t *testing.T) {
	conf := NewConfig()
	conf.Port = "/dev/flexsea-does-not-exist"
	_, err := conf.OpenTransport()
	require.Error(t, err)
}
