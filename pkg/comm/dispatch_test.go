package comm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	frames []*Frame
}

func (h *recordingHandler) HandleFrame(ctx context.Context, f *Frame) {
	h.frames = append(h.frames, f)
}

func TestDispatchTableCatchAll(t *testing.T) {
	catchAll := &recordingHandler{}
	table := NewDispatchTable(catchAll)
	for c := Command(0); c <= MaxCommand; c++ {
		require.NotNil(t, table.Lookup(c))
		require.False(t, table.IsRegistered(c))
		table.Dispatch(context.Background(), &Frame{Command: c, Mode: ModeWrite})
	}
	require.Len(t, catchAll.frames, int(MaxCommand)+1)
	require.Nil(t, table.Lookup(MaxCommand+1))
}

func TestDispatchTableDefaultCatchAll(t *testing.T) {
	table := NewDispatchTable(nil)
	require.NotNil(t, table.Lookup(5))
	table.Dispatch(context.Background(), &Frame{Command: 5, Mode: ModeRead})
}

func TestDispatchTableRegister(t *testing.T) {
	catchAll := &recordingHandler{}
	table := NewDispatchTable(catchAll)
	first, second := &recordingHandler{}, &recordingHandler{}
	require.NoError(t, table.Register(10, first))
	require.NoError(t, table.Register(10, second))
	require.True(t, table.IsRegistered(10))

	f := &Frame{Command: 10, Mode: ModeReadWrite, Payload: []byte{1}}
	table.Dispatch(context.Background(), f)
	require.Empty(t, first.frames, "last registration wins")
	require.Equal(t, []*Frame{f}, second.frames)
	require.Empty(t, catchAll.frames)

	require.NoError(t, table.Register(10, nil))
	require.False(t, table.IsRegistered(10))
	table.Dispatch(context.Background(), f)
	require.Len(t, catchAll.frames, 1)

	err := table.Register(64, first)
	require.True(t, errors.Is(err, ErrInvalidCommand))
}

func TestDispatchTableRegisterFunc(t *testing.T) {
	table := NewDispatchTable(nil)
	var got *Frame
	require.NoError(t, table.RegisterFunc(MaxCommand, func(ctx context.Context, f *Frame) {
		got = f
	}))
	f := &Frame{Command: MaxCommand, Mode: ModeWrite}
	table.Dispatch(context.Background(), f)
	require.Equal(t, f, got)
}

func TestDispatchTableIsolated(t *testing.T) {
	a, b := NewDispatchTable(nil), NewDispatchTable(nil)
	require.NoError(t, a.RegisterFunc(3, func(context.Context, *Frame) {}))
	require.True(t, a.IsRegistered(3))
	require.False(t, b.IsRegistered(3))
}
