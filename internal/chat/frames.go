package chat

import "encoding/json"

// Wire frames. Field names are part of the client contract and must not
// change.

const closeToken = "/close"

const (
	errRoomNotFoundText = "Room does not exist"
	errNameTakenText    = "Username already exists in the room"
	errNameRequiredText = "Room ID and Username are required"
	errNotAdminText     = "Only the admin can close the room"
	roomClosedText      = "Room has been closed by the admin."
)

// inboundFrame is what clients send: a bare text payload. The close command
// is carried in-band as a reserved text token.
type inboundFrame struct {
	Text string `json:"text"`
}

type messageFrame struct {
	Type string `json:"type"`
	User string `json:"user"`
	Text string `json:"text"`
}

type adminStatusFrame struct {
	Type    string `json:"type"`
	IsAdmin bool   `json:"isAdmin"`
}

// noticeFrame covers "room-closed" and "error" payloads.
type noticeFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func encodeMessage(user, text string) []byte {
	payload, _ := json.Marshal(messageFrame{Type: "message", User: user, Text: text})
	return payload
}

func encodeAdminStatus(isAdmin bool) []byte {
	payload, _ := json.Marshal(adminStatusFrame{Type: "admin-status", IsAdmin: isAdmin})
	return payload
}

func encodeRoomClosed(text string) []byte {
	payload, _ := json.Marshal(noticeFrame{Type: "room-closed", Text: text})
	return payload
}

func encodeError(text string) []byte {
	payload, _ := json.Marshal(noticeFrame{Type: "error", Text: text})
	return payload
}
