// Package websocket carries the serial byte stream over websocket binary frames.
package websocket

import (
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/JFDuval/flexsea-v2/pkg/transport/stream"
)

// Dial connects to a websocket serial bridge.
func Dial(url, origin string) (*stream.Transport, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return stream.New(conn), nil
}

// Handler serves websocket connections as transports. fn owns the
// transport until it returns.
func Handler(fn func(*stream.Transport)) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		t := stream.New(conn)
		defer t.Close()
		fn(t)
	})
}
