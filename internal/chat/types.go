package chat

import "github.com/gorilla/websocket"

// Session is the server-side state for one live connection inside a room.
type Session struct {
	Conn *websocket.Conn
	Name string
	Out  chan []byte // outbound frames drained by the writer goroutine
}

// disconnect tears down the underlying connection, which unblocks the read
// pump. The writer goroutine is stopped separately by closing Out.
func (s *Session) disconnect() {
	if s.Conn != nil {
		_ = s.Conn.Close()
	}
}

type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventBroadcast
	EventClose
)

type Event struct {
	Type      EventType
	Session   *Session
	Text      string
	ReplyChan chan error // used by join to ack success/failure
}

var (
	ErrRoomNotFound = errorString("room_not_found")
	ErrNameTaken    = errorString("name_taken")
	ErrNameInvalid  = errorString("name_invalid")
)

type errorString string

func (e errorString) Error() string { return string(e) }
