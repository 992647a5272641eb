package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(":0", ":0", nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.reg.CloseAll()
	})
	return srv, ts
}

func createRoom(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Get(ts.URL + "/create-room")
	if err != nil {
		t.Fatalf("create-room: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("create-room decode: %v", err)
	}
	if body["roomID"] == "" {
		t.Fatal("create-room returned empty roomID")
	}
	return body["roomID"]
}

func roomExists(t *testing.T, ts *httptest.Server, roomID string) bool {
	t.Helper()
	resp, err := http.Get(ts.URL + "/room-exists?roomID=" + url.QueryEscape(roomID))
	if err != nil {
		t.Fatalf("room-exists: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func dialRoom(t *testing.T, ts *httptest.Server, roomID, username string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/ws?roomID=" + url.QueryEscape(roomID) + "&username=" + url.QueryEscape(username)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s as %s: %v", roomID, username, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("undecodable frame %q: %v", payload, err)
	}
	return frame
}

func readFrameOfType(t *testing.T, conn *websocket.Conn, frameType string) map[string]any {
	t.Helper()
	for i := 0; i < 8; i++ {
		frame := readFrame(t, conn)
		if frame["type"] == frameType {
			return frame
		}
	}
	t.Fatalf("no %q frame within 8 reads", frameType)
	return nil
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteJSON(inboundFrame{Text: text}); err != nil {
		t.Fatalf("send %q: %v", text, err)
	}
}

func TestServer_FullRoomLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	roomID := createRoom(t, ts)
	if !roomExists(t, ts, roomID) {
		t.Fatalf("room %s not reported as existing", roomID)
	}

	alice := dialRoom(t, ts, roomID, "alice")
	if frame := readFrameOfType(t, alice, "admin-status"); frame["isAdmin"] != true {
		t.Fatalf("expected alice to be admin, got %v", frame)
	}

	// Second connection with the same name is turned away.
	impostor := dialRoom(t, ts, roomID, "alice")
	if frame := readFrameOfType(t, impostor, "error"); frame["text"] != errNameTakenText {
		t.Fatalf("unexpected duplicate-name error: %v", frame)
	}

	bob := dialRoom(t, ts, roomID, "bob")
	if frame := readFrameOfType(t, bob, "admin-status"); frame["isAdmin"] != false {
		t.Fatalf("expected bob not to be admin, got %v", frame)
	}

	sendText(t, alice, "hi")
	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		frame := readFrameOfType(t, conn, "message")
		if frame["user"] != "alice" || frame["text"] != "hi" {
			t.Fatalf("unexpected message frame for %s: %v", name, frame)
		}
	}

	// Admin departure promotes the earliest remaining member.
	_ = alice.Close()
	if frame := readFrameOfType(t, bob, "admin-status"); frame["isAdmin"] != true {
		t.Fatalf("expected bob promoted to admin, got %v", frame)
	}

	sendText(t, bob, "/close")
	if frame := readFrameOfType(t, bob, "room-closed"); frame["text"] != roomClosedText {
		t.Fatalf("unexpected room-closed frame: %v", frame)
	}

	// The relay tears the connection down after the notice.
	_ = bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 8; i++ {
		if _, _, err := bob.ReadMessage(); err != nil {
			break
		}
	}

	if roomExists(t, ts, roomID) {
		t.Fatalf("room %s still exists after close", roomID)
	}
}

func TestServer_RejectsUnknownRoom(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialRoom(t, ts, "does-not-exist", "alice")
	if frame := readFrameOfType(t, conn, "error"); frame["text"] != errRoomNotFoundText {
		t.Fatalf("unexpected error frame: %v", frame)
	}
}

func TestServer_RejectsMissingUsername(t *testing.T) {
	_, ts := newTestServer(t)
	roomID := createRoom(t, ts)

	conn := dialRoom(t, ts, roomID, "")
	if frame := readFrameOfType(t, conn, "error"); frame["text"] != errNameRequiredText {
		t.Fatalf("unexpected error frame: %v", frame)
	}
}

func TestServer_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	_, ts := newTestServer(t)
	roomID := createRoom(t, ts)

	alice := dialRoom(t, ts, roomID, "alice")
	readFrameOfType(t, alice, "admin-status")

	if err := alice.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("send malformed frame: %v", err)
	}
	sendText(t, alice, "still here")

	frame := readFrameOfType(t, alice, "message")
	if frame["text"] != "still here" {
		t.Fatalf("connection did not survive malformed frame: %v", frame)
	}
}

func TestServer_RoomExistsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/room-exists")
	if err != nil {
		t.Fatalf("room-exists without param: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing roomID, got %d", resp.StatusCode)
	}

	if roomExists(t, ts, "nope") {
		t.Fatal("unknown room reported as existing")
	}
}
