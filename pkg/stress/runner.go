package stress

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/JFDuval/flexsea-v2/pkg/comm"
)

// DefaultInterval is the period of the exchanges on each target, 100Hz.
const DefaultInterval = 10 * time.Millisecond

// Target is a peripheral under test.
type Target struct {
	Name    string
	Channel *comm.Channel
	Command comm.Command
}

// Sample is the outcome of one exchange.
type Sample struct {
	Target   int
	Sent     Payload
	Received Payload
	Latency  time.Duration
	Err      error
}

// Result summarizes a target.
type Result struct {
	Name       string
	Sent       int
	Received   int
	Lost       int
	RampErrors int
	// LastPacket is the packet number last reported by the peer, -1 if none.
	LastPacket int32
	MinLatency time.Duration
	MaxLatency time.Duration
	AvgLatency time.Duration

	total time.Duration
}

func (r *Result) add(s *Sample) {
	r.Sent++
	if s.Err != nil {
		r.Lost++
		return
	}
	r.Received++
	r.LastPacket = s.Received.PacketNumber
	if s.Received.Ramp != s.Sent.Ramp {
		r.RampErrors++
	}
	if r.Received == 1 || s.Latency < r.MinLatency {
		r.MinLatency = s.Latency
	}
	if s.Latency > r.MaxLatency {
		r.MaxLatency = s.Latency
	}
	r.total += s.Latency
	r.AvgLatency = r.total / time.Duration(r.Received)
}

// Runner alternates exchanges between targets.
type Runner struct {
	Targets []Target
	// Cycles is the number of exchanges per target.
	Cycles int
	// Interval bounds the wait for each reply.
	Interval time.Duration
	// OnSample is optional, it's called after each exchange.
	OnSample func(Sample)
}

// Run resets the peers then runs the cycles. It stops early when ctx ends
// and returns the results so far with the context error.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	results := make([]Result, len(r.Targets))
	reset, _ := Payload{Reset: true}.MarshalBinary()
	for n, t := range r.Targets {
		results[n].Name = t.Name
		results[n].LastPacket = -1
		if err := t.Channel.Send(ctx, &comm.Frame{Command: t.Command, Mode: comm.ModeWrite, Payload: reset}); err != nil {
			return results, fmt.Errorf("reset %s: %w", t.Name, err)
		}
	}

	counter := NewCounter()
	for i := 0; i < r.Cycles; i++ {
		p := counter.Next()
		payload, _ := p.MarshalBinary()
		for n, t := range r.Targets {
			s := Sample{Target: n, Sent: p}
			s.Err = r.exchange(ctx, t, payload, interval, &s)
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			results[n].add(&s)
			if r.OnSample != nil {
				r.OnSample(s)
			}
		}
	}
	glog.V(1).Infof("stress test done, %d cycles", counter.Sent())
	return results, nil
}

func (r *Runner) exchange(ctx context.Context, t Target, payload []byte, interval time.Duration, s *Sample) error {
	exCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()
	start := time.Now()
	reply, err := t.Channel.Exchange(exCtx, &comm.Frame{Command: t.Command, Mode: comm.ModeReadWrite, Payload: payload})
	s.Latency = time.Since(start)
	if err != nil {
		glog.V(2).Infof("%s: packet %d: %v", t.Name, s.Sent.PacketNumber, err)
		return err
	}
	return s.Received.UnmarshalBinary(reply.Payload)
}

// LocalLoopback encodes frames into a loopback transport and decodes them
// back, without any peer. It returns the number of frames decoded.
func LocalLoopback(ctx context.Context, c *comm.Channel, cmd comm.Command, cycles int) (int, error) {
	var received int
	var last Payload
	if err := c.RegisterFunc(cmd, func(ctx context.Context, f *comm.Frame) {
		if last.UnmarshalBinary(f.Payload) == nil {
			received++
		}
	}); err != nil {
		return 0, err
	}
	defer c.Register(cmd, nil)

	counter := NewCounter()
	for i := 0; i < cycles; i++ {
		p := counter.Next()
		payload, _ := p.MarshalBinary()
		if err := c.Send(ctx, &comm.Frame{Command: cmd, Mode: comm.ModeWrite, Payload: payload}); err != nil {
			return received, err
		}
		if err := c.Poll(ctx); err != nil {
			return received, err
		}
		if received != i+1 || last != p {
			return received, fmt.Errorf("loopback mismatch at packet %d", p.PacketNumber)
		}
	}
	return received, nil
}
