package ws

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// Accept upgrades HTTP to websocket (allow all origins)
func Accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
}

// readFrame blocks until it receives a text/binary message
// Returns false if the connection is closed
func readFrame(ctx context.Context, ws *websocket.Conn) ([]byte, bool) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// closeConn closes the socket normally
func closeConn(ws *websocket.Conn) {
	_ = ws.Close(websocket.StatusNormalClosure, "bye")
}

// writeLoop drains out into the socket + periodic pings
// Exits when ctx is cancelled or out is closed
func writeLoop(ctx context.Context, ws *websocket.Conn, out <-chan []byte) {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()

	for {
		select {
		case b, ok := <-out:
			if !ok {
				return
			}
			_ = ws.Write(ctx, websocket.MessageText, b)
		case <-t.C:
			_ = ws.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}
