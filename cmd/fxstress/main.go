package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/golang/glog"
	"github.com/pterm/pterm"

	"github.com/JFDuval/flexsea-v2/pkg/bus"
	"github.com/JFDuval/flexsea-v2/pkg/comm"
	"github.com/JFDuval/flexsea-v2/pkg/config"
	fx "github.com/JFDuval/flexsea-v2/pkg/framework"
	"github.com/JFDuval/flexsea-v2/pkg/stress"
	"github.com/JFDuval/flexsea-v2/pkg/transport"
)

var (
	cycles   = 1000
	interval = stress.DefaultInterval
	loopback bool
)

func init() {
	config.SetupFlags()
	flag.IntVar(&cycles, "cycles", cycles, "Exchanges per channel.")
	flag.DurationVar(&interval, "interval", interval, "Reply timeout of each exchange.")
	flag.BoolVar(&loopback, "loopback", loopback, "Run against emulated peripherals, no port.")
}

// peers connects each channel to an emulated peripheral.
func peers(conf *config.Config, runner *fx.Runner) ([]stress.Target, error) {
	var targets []stress.Target
	for _, ch := range conf.ChannelsOrDefault() {
		host, dev := transport.NewPipe()
		peer := comm.NewChannel(dev, conf.ChannelConfig())
		if _, err := stress.NewResponder(peer, comm.Command(ch.Command)); err != nil {
			return nil, err
		}
		runner.Go(fx.NamedRun("peer/"+ch.Name, fx.RunFunc(peer.Run)))
		targets = append(targets, stress.Target{
			Name:    ch.Name,
			Channel: comm.NewChannel(host, conf.ChannelConfig()),
			Command: comm.Command(ch.Command),
		})
	}
	return targets, nil
}

func open(conf *config.Config) ([]stress.Target, *bus.Arbiter, error) {
	t, err := conf.OpenTransport()
	if err != nil {
		return nil, nil, err
	}
	arbiter := conf.OpenBus()
	var targets []stress.Target
	for _, ch := range conf.ChannelsOrDefault() {
		targets = append(targets, stress.Target{
			Name:    ch.Name,
			Channel: conf.NewChannel(t, arbiter, ch),
			Command: comm.Command(ch.Command),
		})
	}
	if err = targets[0].Channel.Flush(); err != nil {
		glog.Warningf("flush %s: %v", conf.Port, err)
	}
	return targets, arbiter, nil
}

func printResults(results []stress.Result) {
	data := pterm.TableData{{"Channel", "Sent", "Received", "Lost", "Ramp errors", "Last packet", "Min", "Avg", "Max"}}
	for _, r := range results {
		data = append(data, []string{
			r.Name,
			fmt.Sprint(r.Sent),
			fmt.Sprint(r.Received),
			fmt.Sprint(r.Lost),
			fmt.Sprint(r.RampErrors),
			fmt.Sprint(r.LastPacket),
			r.MinLatency.Round(time.Microsecond).String(),
			r.AvgLatency.Round(time.Microsecond).String(),
			r.MaxLatency.Round(time.Microsecond).String(),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		glog.Errorf("render results: %v", err)
	}
}

func main() {
	flag.Parse()
	conf, err := config.Load()
	if err != nil {
		log.Fatalln(err)
	}

	runner := fx.NewRunner().HandleSignals()
	var targets []stress.Target
	if loopback {
		pterm.Info.Println("Loopback with emulated peripherals")
		targets, err = peers(conf, runner)
	} else {
		pterm.Info.Printfln("Stress test on %s", conf.Port)
		var arbiter *bus.Arbiter
		targets, arbiter, err = open(conf)
		if arbiter != nil {
			defer arbiter.Close()
		}
	}
	if err != nil {
		log.Fatalln(err)
	}
	defer func() {
		for _, t := range targets {
			t.Channel.Close()
		}
	}()

	bar, err := pterm.DefaultProgressbar.WithTotal(cycles * len(targets)).WithTitle("Exchanges").Start()
	if err != nil {
		log.Fatalln(err)
	}
	var results []stress.Result
	stressRun := &stress.Runner{
		Targets:  targets,
		Cycles:   cycles,
		Interval: interval,
		OnSample: func(stress.Sample) { bar.Increment() },
	}
	runner.Go(fx.NamedRun("stress", fx.RunFunc(func(ctx context.Context) (err error) {
		results, err = stressRun.Run(ctx)
		return
	})))
	err = runner.Wait()
	bar.Stop()
	printResults(results)
	if err != nil {
		pterm.Error.Println(err)
		return
	}
	pterm.Success.Println("Done stressing.")
}
