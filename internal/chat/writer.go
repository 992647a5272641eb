package chat

import (
	"time"

	"github.com/gorilla/websocket"
)

// StartOutboundWriter drains out to the connection and keeps the peer alive
// with pings. Closing out flushes any queued frames, sends a close frame, and
// tears the connection down.
func StartOutboundWriter(conn *websocket.Conn, out <-chan []byte) {
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer func() {
			ticker.Stop()
			_ = conn.Close()
		}()
		for {
			select {
			case payload, ok := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
}
