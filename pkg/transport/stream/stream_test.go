package stream

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JFDuval/flexsea-v2/pkg/comm"
)

func waitBuffered(t *testing.T, tr *Transport, n int) {
	deadline := time.After(time.Second)
	for {
		got, err := tr.Buffered()
		require.NoError(t, err)
		if got >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expect %d bytes, got %d", n, got)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestTransport(t *testing.T) {
	client, server := net.Pipe()
	tr := New(client)
	defer tr.Close()

	go server.Write([]byte{1, 2, 3})
	waitBuffered(t, tr, 3)
	b, err := tr.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(1), b)
	require.NoError(t, tr.ResetBuffers())
	n, err := tr.Buffered()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	recv := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4)
		n, _ := server.Read(buf)
		recv <- buf[:n]
	}()
	_, err = tr.Write([]byte{4, 5})
	require.NoError(t, err)
	require.Equal(t, []byte{4, 5}, <-recv)
}

func TestTransportEOF(t *testing.T) {
	client, server := net.Pipe()
	tr := New(client)
	go func() {
		server.Write([]byte{7})
		server.Close()
	}()
	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("reader not stopped")
	}
	n, err := tr.Buffered()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	tr.ReadByte()
	_, err = tr.Buffered()
	require.Equal(t, io.EOF, err)
	require.NoError(t, tr.Close())
}

func TestTransportChannel(t *testing.T) {
	client, server := net.Pipe()
	tr := New(client)
	defer tr.Close()
	peer := New(server)
	defer peer.Close()

	host := comm.NewChannel(tr, comm.ChannelConfig{})
	dev := comm.NewChannel(peer, comm.ChannelConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	received := make(chan *comm.Frame, 1)
	dev.RegisterFunc(3, func(ctx context.Context, f *comm.Frame) {
		received <- f
	})
	go dev.Run(ctx)

	require.NoError(t, host.Send(ctx, &comm.Frame{Command: 3, Mode: comm.ModeWrite, Payload: []byte{0xed, 0xee}}))
	select {
	case f := <-received:
		require.Equal(t, []byte{0xed, 0xee}, f.Payload)
	case <-ctx.Done():
		t.Fatal("frame not received")
	}
}
