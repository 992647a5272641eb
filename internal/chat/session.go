package chat

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxFrameSize = 4096

	sendQueueSize = 32
)

// HandleSession runs the admission handshake and then the read pump for one
// connection. It blocks until the connection is gone; admission failures are
// reported to the peer with an error frame before teardown.
func HandleSession(s *Session, room *Room, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	defer s.disconnect()

	reply := make(chan error, 1)
	if !room.submit(Event{Type: EventJoin, Session: s, ReplyChan: reply}) {
		// The room tore down between lookup and join.
		writeDirect(s.Conn, encodeError(errRoomNotFoundText))
		return
	}

	var joinErr error
	select {
	case joinErr = <-reply:
	case <-room.done:
		joinErr = ErrRoomNotFound
	}
	if joinErr != nil {
		switch joinErr {
		case ErrNameTaken:
			writeDirect(s.Conn, encodeError(errNameTakenText))
		case ErrNameInvalid:
			writeDirect(s.Conn, encodeError(errNameRequiredText))
		default:
			writeDirect(s.Conn, encodeError(errRoomNotFoundText))
		}
		return
	}

	StartOutboundWriter(s.Conn, s.Out)

	s.Conn.SetReadLimit(maxFrameSize)
	_ = s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		return s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			room.submit(Event{Type: EventLeave, Session: s})
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warn("dropping malformed frame", "user", s.Name, "error", err)
			continue
		}

		switch frame.Text {
		case "":
			continue
		case closeToken:
			room.submit(Event{Type: EventClose, Session: s})
		default:
			room.submit(Event{Type: EventBroadcast, Session: s, Text: frame.Text})
		}
	}
}

// writeDirect is for frames sent before the writer goroutine exists.
func writeDirect(conn *websocket.Conn, payload []byte) {
	if conn == nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, payload)
}
