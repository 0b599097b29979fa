package comm

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Handler is called with each decoded frame.
type Handler interface {
	HandleFrame(context.Context, *Frame)
}

// HandlerFunc is func type of Handler.
type HandlerFunc func(context.Context, *Frame)

// HandleFrame implements Handler.
func (f HandlerFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// LogUnhandled is the default catch-all handler.
var LogUnhandled = HandlerFunc(func(ctx context.Context, f *Frame) {
	glog.V(1).Infof("unhandled frame %s", f)
})

// DispatchTable maps every command code to a Handler.
type DispatchTable struct {
	catchAll Handler
	handlers [MaxCommand + 1]Handler
	bound    [MaxCommand + 1]bool
	lock     sync.RWMutex
}

// NewDispatchTable creates a table with every code bound to catchAll.
// A nil catchAll logs the frames.
func NewDispatchTable(catchAll Handler) *DispatchTable {
	if catchAll == nil {
		catchAll = LogUnhandled
	}
	t := &DispatchTable{catchAll: catchAll}
	for i := range t.handlers {
		t.handlers[i] = catchAll
	}
	return t
}

// Register binds h to cmd, replacing the previous binding.
// A nil h restores the catch-all.
func (t *DispatchTable) Register(cmd Command, h Handler) error {
	if !cmd.IsValid() {
		return &CommandError{Command: cmd, Mode: ModeReadWrite}
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if h == nil {
		t.handlers[cmd], t.bound[cmd] = t.catchAll, false
	} else {
		t.handlers[cmd], t.bound[cmd] = h, true
	}
	return nil
}

// RegisterFunc registers a HandlerFunc.
func (t *DispatchTable) RegisterFunc(cmd Command, fn func(context.Context, *Frame)) error {
	if fn == nil {
		return t.Register(cmd, nil)
	}
	return t.Register(cmd, HandlerFunc(fn))
}

// Lookup returns the handler of cmd, nil only for out of range codes.
func (t *DispatchTable) Lookup(cmd Command) Handler {
	if !cmd.IsValid() {
		return nil
	}
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.handlers[cmd]
}

// IsRegistered tells whether cmd has a handler other than the catch-all.
func (t *DispatchTable) IsRegistered(cmd Command) bool {
	if !cmd.IsValid() {
		return false
	}
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.bound[cmd]
}

// Dispatch invokes exactly one handler for f.
func (t *DispatchTable) Dispatch(ctx context.Context, f *Frame) {
	h := t.Lookup(f.Command)
	if h == nil {
		h = t.catchAll
	}
	h.HandleFrame(ctx, f)
}
