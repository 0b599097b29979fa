package stresstest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/JFDuval/flexsea-v2/pkg/cli/sh"
	"github.com/JFDuval/flexsea-v2/pkg/comm"
	"github.com/JFDuval/flexsea-v2/pkg/stress"
	"github.com/JFDuval/flexsea-v2/pkg/transport"
)

const defaultCycles = 10

func parseCycles(args []string) (int, error) {
	if len(args) == 0 {
		return defaultCycles, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("Invalid CYCLES: %q", args[0])
	}
	return n, nil
}

var (
	// LoopbackCmd runs frames through the codec without a peripheral.
	LoopbackCmd = ishell.Cmd{
		Name:    "loopback",
		Aliases: []string{"lb"},
		Help:    "[CYCLES]",
		Func: func(c *ishell.Context) {
			cycles, err := parseCycles(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			ch := comm.NewChannel(transport.NewLoopback(), sh.ShellFrom(c).Config.ChannelConfig())
			defer ch.Close()
			received, err := stress.LocalLoopback(context.Background(), ch, stress.CmdStressTest1, cycles)
			c.Printf("Packets sent: %d\nPackets received: %d\n", cycles, received)
			if err != nil {
				c.Err(err)
			}
		},
	}

	// StressCmd exchanges stress test frames with every channel.
	StressCmd = ishell.Cmd{
		Name: "stress",
		Help: "[CYCLES]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			cycles, err := parseCycles(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			runner := &stress.Runner{Cycles: cycles}
			for n, ch := range s.Session.Channels {
				runner.Targets = append(runner.Targets, stress.Target{
					Name:    s.Session.Configs[n].Name,
					Channel: ch,
					Command: comm.Command(s.Session.Configs[n].Command),
				})
			}
			results, err := runner.Run(context.Background())
			for n := range results {
				s.Print(c, &results[n])
			}
			if err != nil {
				c.Err(err)
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&LoopbackCmd,
		&StressCmd,
	)
}
