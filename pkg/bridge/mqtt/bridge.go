package mqtt

import (
	"context"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/JFDuval/flexsea-v2/pkg/comm"
)

// Topics published by Bridge, relative to the queue prefix.
const (
	FramesTopic = "frames"
	StateTopic  = "state"
)

// Publisher publishes payloads to topics.
type Publisher interface {
	Pub(topic string, payload []byte) paho.Token
	PubRetained(topic string, payload []byte) paho.Token
}

// Bridge publishes what a Channel receives. It's installed as the Tap and
// the Notifier of the channel:
//
//   frames/<channel>/<command>  protobuf Struct, see EncodeRecord
//   state/<channel>             channel state name, retained
type Bridge struct {
	Publisher Publisher
	Channel   string

	now func() time.Time
}

// NewBridge creates a Bridge for the named channel.
func NewBridge(pub Publisher, channel string) *Bridge {
	return &Bridge{Publisher: pub, Channel: channel, now: time.Now}
}

// Attach installs the bridge on c, chaining existing observers.
func (b *Bridge) Attach(c *comm.Channel) {
	tap, notifier := c.Tap, c.Notifier
	c.Tap = comm.HandlerFunc(func(ctx context.Context, f *comm.Frame) {
		b.HandleFrame(ctx, f)
		if tap != nil {
			tap.HandleFrame(ctx, f)
		}
	})
	c.Notifier = comm.StateChangedFunc(func(ctx context.Context, state comm.State) {
		b.StateChanged(ctx, state)
		if notifier != nil {
			notifier.StateChanged(ctx, state)
		}
	})
}

// FrameTopic returns the topic of frames with cmd.
func FrameTopic(channel string, cmd comm.Command) string {
	return FramesTopic + "/" + channel + "/" + strconv.Itoa(int(cmd))
}

// HandleFrame implements comm.Handler.
func (b *Bridge) HandleFrame(ctx context.Context, f *comm.Frame) {
	payload, err := EncodeRecord(&Record{Channel: b.Channel, Time: b.now(), Frame: f})
	if err != nil {
		glog.Errorf("bridge encode %s: %v", f, err)
		return
	}
	b.Publisher.Pub(FrameTopic(b.Channel, f.Command), payload)
}

// StateChanged implements comm.StateNotifier.
func (b *Bridge) StateChanged(ctx context.Context, state comm.State) {
	b.Publisher.PubRetained(StateTopic+"/"+b.Channel, []byte(state.String()))
}
