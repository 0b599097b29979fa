package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JFDuval/flexsea-v2/pkg/comm"
	"github.com/JFDuval/flexsea-v2/pkg/transport/stream"
)

func TestWebsocketExchange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	server := httptest.NewServer(Handler(func(tr *stream.Transport) {
		dev := comm.NewChannel(tr, comm.ChannelConfig{})
		dev.Identity = &comm.Identity{SerialNumber: 99, Board: "ws-peer"}
		dev.Run(ctx)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	tr, err := Dial(url, server.URL)
	require.NoError(t, err)
	host := comm.NewChannel(tr, comm.ChannelConfig{Timeout: 100 * time.Millisecond})
	defer host.Close()

	id, err := host.WhoAmI(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(99), id.SerialNumber)
	require.Equal(t, "ws-peer", id.Board)
}
