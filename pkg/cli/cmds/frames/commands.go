package frames

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/JFDuval/flexsea-v2/pkg/bridge/mqtt"
	"github.com/JFDuval/flexsea-v2/pkg/cli/sh"
	"github.com/JFDuval/flexsea-v2/pkg/comm"
)

// ParsePayload decodes a 0x prefixed hex string, any other string is sent
// as is.
func ParsePayload(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %v", err)
		}
		return b, nil
	}
	return []byte(s), nil
}

// ParseCommand parses a command code in decimal or 0x prefixed hex.
func ParseCommand(s string) (comm.Command, error) {
	val, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid CMD: %v", err)
	}
	if val > uint64(comm.MaxCommand) {
		return 0, &comm.CommandError{Command: comm.Command(val)}
	}
	return comm.Command(val), nil
}

// Status is printed by the status command.
type Status struct {
	Channel     string     `json:"channel"`
	State       string     `json:"state"`
	Pending     bool       `json:"pending"`
	LastSeq     uint16     `json:"last_seq"`
	BusChannels int        `json:"bus_channels"`
	BusActive   int        `json:"bus_active"`
	Stats       comm.Stats `json:"stats"`
}

func printReply(c *ishell.Context, reply *comm.Frame) {
	if reply == nil {
		return
	}
	c.Println(reply.String())
	if len(reply.Payload) > 0 {
		c.Print(hex.Dump(reply.Payload))
	}
}

var (
	// WhoAmICmd asks the peripheral for its identity.
	WhoAmICmd = ishell.Cmd{
		Name:    "whoami",
		Aliases: []string{"who"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			ctx, cancel := sh.CommandContext()
			defer cancel()
			id, err := sh.ShellFrom(c).Session.Channel().WhoAmI(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			sh.ShellFrom(c).Print(c, id)
		}),
	}

	// SendCmd sends a frame and waits for the reply of R and RW frames.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "CMD MODE(R|W|RW) [PAYLOAD|0xHEX]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("CMD and MODE required"))
				return
			}
			cmd, err := ParseCommand(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			mode, err := comm.ParseMode(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			f := &comm.Frame{Command: cmd, Mode: mode}
			if len(c.Args) > 2 {
				if f.Payload, err = ParsePayload(strings.Join(c.Args[2:], " ")); err != nil {
					c.Err(err)
					return
				}
			}
			ctx, cancel := sh.CommandContext()
			defer cancel()
			reply, err := sh.ShellFrom(c).Session.Channel().Exchange(ctx, f)
			if err != nil {
				c.Err(err)
				return
			}
			printReply(c, reply)
		}),
	}

	// PollCmd receives and dispatches frames for a while.
	PollCmd = ishell.Cmd{
		Name:    "poll",
		Aliases: []string{"p"},
		Help:    "[DURATION]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			d := time.Second
			if len(c.Args) > 0 {
				val, err := time.ParseDuration(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("Invalid DURATION: %v", err))
					return
				}
				d = val
			}
			ch := sh.ShellFrom(c).Session.Channel()
			before := ch.Stats().RxFrames
			deadline := time.Now().Add(d)
			ctx, cancel := sh.CommandContext()
			defer cancel()
			for time.Now().Before(deadline) {
				if err := ch.Poll(ctx); err != nil {
					c.Err(err)
					return
				}
				time.Sleep(ch.Config().PollInterval)
			}
			c.Printf("%d frames received\n", ch.Stats().RxFrames-before)
		}),
	}

	// StatusCmd prints the state and counters of the current channel.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			ch := s.Session.Channel()
			s.Print(c, &Status{
				Channel:     s.Session.Name(),
				State:       ch.State().String(),
				Pending:     ch.Pending(),
				LastSeq:     uint16(ch.LastTxSequence()),
				BusChannels: s.Session.Arbiter.Channels(),
				BusActive:   s.Session.Arbiter.Active(),
				Stats:       ch.Stats(),
			})
		}),
	}

	// BridgeCmd publishes the frames of all channels to an MQTT broker.
	BridgeCmd = ishell.Cmd{
		Name: "bridge",
		Help: "[URL]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			if s.Session.Queue != nil {
				c.Err(fmt.Errorf("already bridged"))
				return
			}
			url := s.Config.MQTTURL
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if url == "" {
				c.Err(fmt.Errorf("URL required"))
				return
			}
			q, err := mqtt.NewQueueFromURL(url)
			if err != nil {
				c.Err(err)
				return
			}
			if err = q.Connect(); err != nil {
				c.Err(err)
				return
			}
			for n, ch := range s.Session.Channels {
				mqtt.NewBridge(q, s.Session.Configs[n].Name).Attach(ch)
			}
			s.Session.Queue = q
		}),
	}
)

func init() {
	sh.AddCmds(
		&WhoAmICmd,
		&SendCmd,
		&PollCmd,
		&StatusCmd,
		&BridgeCmd,
	)
}
