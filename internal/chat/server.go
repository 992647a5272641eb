package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The browser client is served from a different origin; admission is the
	// gate, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	addr        string
	metricsAddr string
	logger      *slog.Logger
	reg         *Registry
	httpSrv     *http.Server
	metricsSrv  *http.Server
}

func NewServer(addr, metricsAddr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:        addr,
		metricsAddr: metricsAddr,
		logger:      logger,
		reg:         NewRegistry(logger),
	}
}

// Handler returns the relay's API surface, CORS-wrapped for the browser
// client.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/create-room", s.createRoom)
	mux.HandleFunc("/room-exists", s.roomExists)
	mux.HandleFunc("/ws", s.serveWS)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.httpSrv = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("relay server stopped", "error", err)
		}
	}()

	mln, err := net.Listen("tcp", s.metricsAddr)
	if err != nil {
		_ = ln.Close()
		return err
	}
	mmux := http.NewServeMux()
	mmux.Handle("/metrics", promhttp.Handler())
	s.metricsSrv = &http.Server{Handler: mmux}
	go func() {
		if err := s.metricsSrv.Serve(mln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()

	s.logger.Info("server started", "addr", s.addr, "metrics_addr", s.metricsAddr)
	return nil
}

func (s *Server) Stop() {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(ctx)
	}
	if s.metricsSrv != nil {
		_ = s.metricsSrv.Shutdown(ctx)
	}

	// WebSocket connections are hijacked, so Shutdown does not cover them;
	// closing the rooms does.
	s.reg.CloseAll()

	s.logger.Info("shutdown complete")
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	id := s.reg.CreateRoom()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"roomID": id})
}

func (s *Server) roomExists(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomID")
	w.Header().Set("Content-Type", "application/json")

	if roomID == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(noticeFrame{Type: "error", Text: "Room ID is required"})
		return
	}
	if !s.reg.Exists(roomID) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(noticeFrame{Type: "error", Text: errRoomNotFoundText})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"exists": true})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomID")
	username := r.URL.Query().Get("username")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	if roomID == "" || strings.TrimSpace(username) == "" {
		writeDirect(conn, encodeError(errNameRequiredText))
		_ = conn.Close()
		return
	}

	room, ok := s.reg.Lookup(roomID)
	if !ok {
		writeDirect(conn, encodeError(errRoomNotFoundText))
		_ = conn.Close()
		return
	}

	sess := &Session{
		Conn: conn,
		Name: username,
		Out:  make(chan []byte, sendQueueSize),
	}
	HandleSession(sess, room, s.logger)
}
