package chat

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-wide room table. Its lock covers only the table
// itself; each room serializes its own state in its event loop.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		logger: logger,
	}
}

// CreateRoom allocates a fresh ID, registers an empty open room, and starts
// its event loop.
func (g *Registry) CreateRoom() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uuid.NewString()
	for {
		if _, exists := g.rooms[id]; !exists {
			break
		}
		id = uuid.NewString()
	}

	room := newRoom(id, g, g.logger)
	g.rooms[id] = room
	go room.Run()

	OpenRooms.Set(float64(len(g.rooms)))
	g.logger.Info("room created", "room", id)
	return id
}

func (g *Registry) Lookup(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	return room, ok
}

func (g *Registry) Exists(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.rooms[id]
	return ok
}

// Remove drops a room from the table. Idempotent; called by the room itself
// on closure or when its last member leaves.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rooms[id]; !ok {
		return
	}
	delete(g.rooms, id)

	OpenRooms.Set(float64(len(g.rooms)))
	g.logger.Info("room removed", "room", id)
}

// CloseAll force-closes every live room and waits for their event loops to
// finish. The table lock is not held across the waits, since closing rooms
// call back into Remove.
func (g *Registry) CloseAll() {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.RUnlock()

	for _, room := range rooms {
		room.Shutdown()
	}
}
