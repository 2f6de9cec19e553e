package ws

import (
	"chatter/sink"
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// connection binds one WebSocket to one authenticated user. The sink is its
// outbound queue; writePump is the only goroutine ever writing to the socket.
type connection struct {
	ws     *websocket.Conn
	userID string
	sink   *sink.ConnectionSink
	log    *slog.Logger
}

// writePump drains the sink, encodes events, and keeps the peer alive with
// pings. It exits when the context is canceled or a write fails; either way
// the read side notices the closed socket and unregisters.
func (c *connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case evt := <-c.sink.Events:
			payload, err := EncodeEvent(evt)
			if err != nil {
				c.log.Error("Failed to encode event", "kind", evt.Kind(), "error", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed, closing connection", "user_id", c.userID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) setupRead(maxMessageSize int64) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}
