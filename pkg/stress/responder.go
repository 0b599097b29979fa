package stress

import (
	"context"

	"github.com/golang/glog"

	"github.com/JFDuval/flexsea-v2/pkg/comm"
)

// Responder emulates a peripheral: it answers stress frames with its own
// packet counter and the ramp it received.
type Responder struct {
	Channel *comm.Channel
	Command comm.Command

	packets int32
}

// NewResponder registers a Responder on c.
func NewResponder(c *comm.Channel, cmd comm.Command) (*Responder, error) {
	r := &Responder{Channel: c, Command: cmd, packets: -1}
	if err := c.Register(cmd, r); err != nil {
		return nil, err
	}
	return r, nil
}

// HandleFrame implements comm.Handler.
func (r *Responder) HandleFrame(ctx context.Context, f *comm.Frame) {
	var p Payload
	if err := p.UnmarshalBinary(f.Payload); err != nil {
		glog.Warningf("responder: %v", err)
		return
	}
	if p.Reset {
		r.packets = -1
		return
	}
	r.packets++
	if !f.Mode.ExpectsReply() {
		return
	}
	payload, _ := Payload{PacketNumber: r.packets, Ramp: p.Ramp}.MarshalBinary()
	if err := r.Channel.Send(ctx, &comm.Frame{Command: r.Command, Mode: comm.ModeWrite, Payload: payload}); err != nil {
		glog.Warningf("responder reply: %v", err)
	}
}

// Received returns the number of stress frames handled since the last reset.
func (r *Responder) Received() int {
	return int(r.packets) + 1
}
