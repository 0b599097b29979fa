package comm

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// State is the state of the request/reply cycle of a Channel.
type State int

const (
	// StateIdle means no reply is expected.
	StateIdle State = iota
	// StateAwaitingReply means a request was sent and its reply is expected.
	StateAwaitingReply
	// StateResending means the request timed out once and was sent again.
	StateResending
	// StateResyncing means the link is considered out of sync and the
	// request was sent again to kick it off.
	StateResyncing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting-reply"
	case StateResending:
		return "resending"
	case StateResyncing:
		return "resyncing"
	}
	return "unknown"
}

// StateNotifier is called when the channel state changed.
type StateNotifier interface {
	StateChanged(context.Context, State)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, State)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state State) {
	f(ctx, state)
}

// Defaults of ChannelConfig.
const (
	DefaultTimeout      = 40 * time.Millisecond
	DefaultPollInterval = time.Millisecond
)

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	// Timeout before a request is sent again. The link is resynchronized
	// after 3 times Timeout without reply.
	Timeout time.Duration
	// MaxRetries bounds retransmissions of a request, 0 for unlimited.
	MaxRetries int
	// PollInterval is the sleep between polls in Run and Exchange.
	PollInterval time.Duration
	// MaxEncodedBytes is the frame size of the peer.
	MaxEncodedBytes int
	// RingSize is the capacity of the receive buffer.
	RingSize int
}

// Stats contains the counters of a Channel.
type Stats struct {
	TxFrames        uint64
	RxFrames        uint64
	Retransmissions uint64
	Resyncs         uint64
	Malformed       uint64
	Overflows       uint64
	DroppedBytes    uint64
	NoReply         uint64
}

// request is a sent frame waiting for its reply.
type request struct {
	frame      Frame
	encoded    []byte
	cycleStart time.Time
	resent     bool
	retries    int

	done  bool
	reply *Frame
	err   error
}

// Channel sends frames with at-least-once delivery and dispatches received
// frames. A Channel is owned by a single goroutine, only State and Stats
// are safe to call from others.
type Channel struct {
	Transport Transport
	// Selector is optional, it's called before each transmission.
	Selector Selector
	// Notifier is optional, it's called on state changes.
	Notifier StateNotifier
	// Tap is optional, it sees every decoded frame before dispatching.
	Tap Handler
	// Identity answers WHO_AM_I requests from the peer, nil to ignore them.
	Identity *Identity

	config  ChannelConfig
	codec   *Codec
	ring    *RingBuffer
	table   *DispatchTable
	pending *request
	desync  bool
	closed  bool
	now     func() time.Time

	lastTxSeq  Sequence
	lastTxTime time.Time

	state State
	stats Stats
	lock  sync.RWMutex
}

// NewChannel creates a Channel over t.
func NewChannel(t Transport, config ChannelConfig) *Channel {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	c := &Channel{
		Transport: t,
		config:    config,
		codec:     NewCodec(config.MaxEncodedBytes),
		ring:      NewRingBuffer(config.RingSize),
		table:     NewDispatchTable(nil),
		now:       time.Now,
	}
	c.table.RegisterFunc(CmdAck, c.handleAck)
	c.table.RegisterFunc(CmdWhoAmI, c.handleWhoAmI)
	return c
}

// Config returns the effective configuration.
func (c *Channel) Config() ChannelConfig {
	return c.config
}

// Codec returns the codec of the channel.
func (c *Channel) Codec() *Codec {
	return c.codec
}

// Table returns the dispatch table.
func (c *Channel) Table() *DispatchTable {
	return c.table
}

// Register binds h to cmd in the dispatch table.
func (c *Channel) Register(cmd Command, h Handler) error {
	if cmd == CmdAck {
		glog.Warning("ACK handler replaced, delivery confirmation by ACK frames is disabled")
	}
	return c.table.Register(cmd, h)
}

// RegisterFunc is Register with a func.
func (c *Channel) RegisterFunc(cmd Command, fn func(context.Context, *Frame)) error {
	if fn == nil {
		return c.Register(cmd, nil)
	}
	return c.Register(cmd, HandlerFunc(fn))
}

// State gets the state.
func (c *Channel) State() State {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state
}

// Stats gets a snapshot of the counters.
func (c *Channel) Stats() Stats {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.stats
}

// Pending indicates a reply is outstanding.
func (c *Channel) Pending() bool {
	return c.pending != nil
}

// LastTxSequence returns the sequence of the last request expecting a reply.
func (c *Channel) LastTxSequence() Sequence {
	return c.lastTxSeq
}

// LastTxTime returns when the last request expecting a reply was sent.
func (c *Channel) LastTxTime() time.Time {
	return c.lastTxTime
}

// Flush drops buffered input, in the transport and in the receive buffer.
func (c *Channel) Flush() error {
	c.ring.Reinit()
	return c.Transport.ResetBuffers()
}

// Send encodes and transmits f. Read and ReadWrite frames wait for a reply,
// replacing any request still waiting.
func (c *Channel) Send(ctx context.Context, f *Frame) error {
	_, err := c.send(ctx, f)
	return err
}

func (c *Channel) send(ctx context.Context, f *Frame) (*request, error) {
	if c.closed {
		return nil, ErrClosed
	}
	b, err := c.codec.Encode(f)
	if err != nil {
		return nil, err
	}
	if err = c.transmit(b); err != nil {
		return nil, err
	}
	glog.V(2).Infof("tx %s", f)
	if !f.Mode.ExpectsReply() {
		return nil, nil
	}
	if p := c.pending; p != nil {
		glog.V(1).Infof("request cmd=%d seq=%d superseded by seq=%d", p.frame.Command, p.frame.Seq, f.Seq)
		c.retire(nil, ErrSuperseded)
	}
	now := c.now()
	req := &request{frame: *f, encoded: b, cycleStart: now}
	c.pending = req
	c.lastTxSeq, c.lastTxTime = f.Seq, now
	c.setState(ctx, StateAwaitingReply)
	return req, nil
}

func (c *Channel) transmit(b []byte) error {
	if c.Selector != nil {
		if err := c.Selector.Select(); err != nil {
			return err
		}
	}
	if _, err := c.Transport.Write(b); err != nil {
		return err
	}
	c.lock.Lock()
	c.stats.TxFrames++
	c.lock.Unlock()
	return nil
}

// Poll moves received bytes into the receive buffer, dispatches every
// complete frame and applies the timeout policy to the pending request.
func (c *Channel) Poll(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	n, err := c.Transport.Buffered()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		b, err := c.Transport.ReadByte()
		if err != nil {
			return err
		}
		if c.ring.Push(b) == nil {
			continue
		}
		c.decodeAll(ctx)
		if c.closed {
			return ErrClosed
		}
		// decodeAll leaves at most an incomplete frame, which is shorter
		// than the ring.
		if c.ring.Push(b) != nil {
			c.overflow(b)
		}
	}
	c.decodeAll(ctx)
	return c.checkTimeout(ctx)
}

// overflow drops the receive buffer to make room for b.
func (c *Channel) overflow(b byte) {
	dropped := c.ring.Len()
	glog.Warningf("receive buffer full, dropping %d bytes", dropped)
	c.lock.Lock()
	c.stats.Overflows++
	c.stats.DroppedBytes += uint64(dropped)
	c.lock.Unlock()
	c.ring.Reinit()
	c.ring.Push(b)
}

func (c *Channel) decodeAll(ctx context.Context) {
	for !c.closed {
		f, err := c.codec.Decode(c.ring)
		if err == ErrIncomplete {
			return
		}
		if err != nil {
			glog.V(1).Infof("rx: %v", err)
			c.lock.Lock()
			c.stats.Malformed++
			c.lock.Unlock()
			if c.pending != nil {
				c.desync = true
			}
			continue
		}
		c.lock.Lock()
		c.stats.RxFrames++
		c.lock.Unlock()
		glog.V(2).Infof("rx %s", f)
		c.handleFrame(ctx, f)
	}
}

func (c *Channel) handleFrame(ctx context.Context, f *Frame) {
	if c.Tap != nil {
		c.Tap.HandleFrame(ctx, f)
	}
	if p := c.pending; p != nil && f.Command == p.frame.Command && f.Command != CmdAck &&
		(f.Mode == ModeWrite || f.Mode == ModeReadWrite) {
		c.retire(f, nil)
		c.setState(ctx, StateIdle)
	}
	c.table.Dispatch(ctx, f)
	if f.Ack == Acked && f.Command != CmdAck && !c.closed {
		c.acknowledge(ctx, f)
	}
}

// acknowledge confirms the reception of f to the peer.
func (c *Channel) acknowledge(ctx context.Context, f *Frame) {
	ack := &Frame{Command: CmdAck, Mode: ModeWrite, Ack: Acked, Payload: AckPayload(f.Command, f.Seq)}
	if err := c.Send(ctx, ack); err != nil {
		glog.Errorf("ACK cmd=%d seq=%d: %v", f.Command, f.Seq, err)
	}
}

func (c *Channel) handleAck(ctx context.Context, f *Frame) {
	cmd, seq, ok := ParseAck(f)
	if !ok {
		glog.V(1).Infof("invalid ACK frame %s", f)
		return
	}
	if p := c.pending; p != nil && p.frame.Command == cmd && p.frame.Seq == seq {
		c.retire(f, nil)
		c.setState(ctx, StateIdle)
	}
}

func (c *Channel) handleWhoAmI(ctx context.Context, f *Frame) {
	if !f.Mode.ExpectsReply() || c.Identity == nil {
		return
	}
	payload, err := c.Identity.MarshalBinary()
	if err != nil {
		glog.Errorf("WHO_AM_I: %v", err)
		return
	}
	if err = c.Send(ctx, &Frame{Command: CmdWhoAmI, Mode: ModeWrite, Payload: payload}); err != nil {
		glog.Errorf("WHO_AM_I reply: %v", err)
	}
}

func (c *Channel) checkTimeout(ctx context.Context) error {
	p := c.pending
	if p == nil {
		return nil
	}
	now := c.now()
	elapsed := now.Sub(p.cycleStart)
	resync := c.desync || elapsed >= 3*c.config.Timeout
	if !resync && (p.resent || elapsed < c.config.Timeout) {
		return nil
	}
	if c.config.MaxRetries > 0 && p.retries >= c.config.MaxRetries {
		glog.Warningf("no reply to cmd=%d seq=%d after %d retries", p.frame.Command, p.frame.Seq, p.retries)
		c.lock.Lock()
		c.stats.NoReply++
		c.lock.Unlock()
		c.retire(nil, ErrNoReply)
		c.setState(ctx, StateIdle)
		return nil
	}
	if err := c.transmit(p.encoded); err != nil {
		return err
	}
	p.retries++
	c.lock.Lock()
	c.stats.Retransmissions++
	if resync {
		c.stats.Resyncs++
	}
	c.lock.Unlock()
	if resync {
		glog.Warningf("out of sync, resending cmd=%d seq=%d", p.frame.Command, p.frame.Seq)
		p.cycleStart, p.resent = now, false
		c.desync = false
		c.setState(ctx, StateResyncing)
	} else {
		glog.V(1).Infof("timeout, resending cmd=%d seq=%d", p.frame.Command, p.frame.Seq)
		p.resent = true
		c.setState(ctx, StateResending)
	}
	return nil
}

func (c *Channel) retire(reply *Frame, err error) {
	p := c.pending
	if p == nil {
		return
	}
	p.done, p.reply, p.err = true, reply, err
	c.pending = nil
	c.desync = false
}

func (c *Channel) setState(ctx context.Context, state State) {
	var notifier StateNotifier
	c.lock.Lock()
	if c.state != state {
		c.state = state
		notifier = c.Notifier
	}
	c.lock.Unlock()
	if notifier != nil {
		notifier.StateChanged(ctx, state)
	}
}

// Run polls until ctx is done. Buffered bytes are kept for the next Poll.
func (c *Channel) Run(ctx context.Context) error {
	for {
		if err := c.Poll(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.PollInterval):
		}
	}
}

// Exchange sends f and polls until the reply arrives.
// Write frames return immediately with a nil reply.
// When ctx ends first, the request stays pending.
func (c *Channel) Exchange(ctx context.Context, f *Frame) (*Frame, error) {
	req, err := c.send(ctx, f)
	if err != nil || req == nil {
		return nil, err
	}
	for {
		if err = c.Poll(ctx); err != nil {
			return nil, err
		}
		if req.done {
			return req.reply, req.err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.PollInterval):
		}
	}
}

// WhoAmI asks the peer for its identity.
func (c *Channel) WhoAmI(ctx context.Context) (*Identity, error) {
	reply, err := c.Exchange(ctx, &Frame{Command: CmdWhoAmI, Mode: ModeRead})
	if err != nil {
		return nil, err
	}
	id := &Identity{}
	if err = id.UnmarshalBinary(reply.Payload); err != nil {
		return nil, err
	}
	return id, nil
}

// Close drops the pending request and closes the transport if it's an io.Closer.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.retire(nil, ErrClosed)
	c.closed = true
	c.setState(context.Background(), StateIdle)
	if closer, ok := c.Transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
