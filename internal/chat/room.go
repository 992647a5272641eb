package chat

import (
	"log/slog"
	"strings"
	"time"
)

const maxNameLength = 32

// Room owns the membership and admin state for one chat room. All mutations
// and broadcasts are serialized through the Run goroutine.
type Room struct {
	ID     string
	events chan Event
	done   chan struct{}
	reg    *Registry
	logger *slog.Logger

	// Owned by the Run goroutine; never touched from outside it.
	members map[string]*Session
	order   []string // join order, drives admin succession
	admin   string
	closed  bool
}

func newRoom(id string, reg *Registry, logger *slog.Logger) *Room {
	if logger == nil {
		logger = slog.Default()
	}
	return &Room{
		ID:      id,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		reg:     reg,
		logger:  logger.With("room", id),
		members: make(map[string]*Session),
	}
}

// submit delivers an event to the room's event loop. It reports false once
// the loop has exited, so a join racing a teardown fails cleanly instead of
// blocking on a dead room.
func (r *Room) submit(ev Event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

// Shutdown force-closes the room regardless of admin and waits for the event
// loop to finish. Used by the registry at process stop.
func (r *Room) Shutdown() {
	if r.submit(Event{Type: EventClose}) {
		<-r.done
	}
}

func (r *Room) Run() {
	defer close(r.done)

	for ev := range r.events {
		start := time.Now()
		eventType := ""

		switch ev.Type {
		case EventJoin:
			eventType = "join"
			r.handleJoin(ev)
		case EventLeave:
			eventType = "leave"
			r.handleLeave(ev)
		case EventBroadcast:
			eventType = "broadcast"
			r.handleBroadcast(ev)
		case EventClose:
			eventType = "close"
			r.handleClose(ev)
		}

		RoomEventsTotal.WithLabelValues(eventType).Inc()
		EventProcessingDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

		if r.closed {
			return
		}
	}
}

func (r *Room) handleJoin(ev Event) {
	var joinErr error
	defer func() {
		// ReplyChan is only used for join.
		if ev.ReplyChan != nil {
			ev.ReplyChan <- joinErr
			close(ev.ReplyChan)
		}
	}()

	if r.closed {
		joinErr = ErrRoomNotFound
		return
	}

	name := strings.TrimSpace(ev.Session.Name)
	if name == "" || len(name) > maxNameLength {
		joinErr = ErrNameInvalid
		return
	}
	if _, exists := r.members[name]; exists {
		joinErr = ErrNameTaken
		return
	}

	ev.Session.Name = name
	r.members[name] = ev.Session
	r.order = append(r.order, name)
	if len(r.members) == 1 {
		r.admin = name
	}
	ConnectedSessions.Inc()

	// The role notice is queued before any later broadcast can be, so the
	// session never sees a message that predates its own admin view.
	r.send(ev.Session, encodeAdminStatus(name == r.admin))

	r.logger.Info("member joined", "user", name, "members", len(r.members))
}

func (r *Room) handleLeave(ev Event) {
	s := ev.Session
	if s == nil || s.Name == "" {
		return
	}
	if current, ok := r.members[s.Name]; !ok || current != s {
		return
	}

	r.removeMember(s)
	r.logger.Info("member left", "user", s.Name, "members", len(r.members))

	if len(r.members) == 0 {
		r.closed = true
		r.reg.Remove(r.ID)
		return
	}
	if r.admin == s.Name {
		r.promote()
	}
}

func (r *Room) handleBroadcast(ev Event) {
	s := ev.Session
	if s == nil || s.Name == "" {
		return
	}
	if current, ok := r.members[s.Name]; !ok || current != s {
		return
	}
	if ev.Text == "" {
		return
	}

	payload := encodeMessage(s.Name, ev.Text)
	for _, name := range r.order {
		r.send(r.members[name], payload)
	}
}

func (r *Room) handleClose(ev Event) {
	// A nil session is the registry's shutdown sweep; everyone else must be
	// the current admin. A stale non-member is ignored outright: its send
	// queue may already be closed.
	if s := ev.Session; s != nil {
		current, ok := r.members[s.Name]
		if !ok || current != s {
			return
		}
		if s.Name != r.admin {
			r.send(s, encodeError(errNotAdminText))
			return
		}
	}

	r.closed = true
	// Unlisted before anyone is notified, so no member can see the closed
	// notice while an exists-check still reports the room.
	r.reg.Remove(r.ID)

	payload := encodeRoomClosed(roomClosedText)
	for _, name := range r.order {
		s := r.members[name]
		r.send(s, payload)
		// Closing Out lets the writer flush the notice, then close the
		// connection, which in turn unblocks the member's read pump.
		close(s.Out)
		ConnectedSessions.Dec()
	}

	r.logger.Info("room closed", "members", len(r.members))
}

// promote hands admin to the earliest remaining member by join order and
// notifies it.
func (r *Room) promote() {
	r.admin = r.order[0]
	r.send(r.members[r.admin], encodeAdminStatus(true))
	r.logger.Info("admin promoted", "user", r.admin)
}

func (r *Room) removeMember(s *Session) {
	delete(r.members, s.Name)
	for i, name := range r.order {
		if name == s.Name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	// Closing Out stops the writer goroutine gracefully.
	close(s.Out)
	ConnectedSessions.Dec()
}

// send enqueues a frame without blocking the event loop. A full queue means a
// slow or dead peer; dropping its connection converts the backpressure into a
// normal departure handled by the read pump.
func (r *Room) send(s *Session, payload []byte) {
	select {
	case s.Out <- payload:
	default:
		s.disconnect()
	}
}
