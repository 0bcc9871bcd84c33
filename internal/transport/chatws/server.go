// Package chatws implements the chat transport: a bidirectional WebSocket
// connection scoped to one session, carrying {message: string} requests in
// and the Streaming Bus's event vocabulary out as successive framed
// messages until turn.done or turn.error. Each connection holds its own
// bounded bus.Subscription; there is no shared broadcast list.
package chatws

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/forgeline/forgeline/internal/agent"
	"github.com/forgeline/forgeline/internal/bus"
	"github.com/forgeline/forgeline/internal/config"
	"github.com/forgeline/forgeline/internal/session"
	"github.com/forgeline/forgeline/pkg/protocol"
)

// TransportTag is this transport's identifier in the Session Manager's
// per-transport active-session index.
const TransportTag = "chat-ws"

// Server upgrades HTTP connections to WebSocket and drives the Agent Loop
// for each one. One Server is shared by every connection.
type Server struct {
	cfg      *config.Config
	loop     *agent.Loop
	sessions *session.Manager
	bus      *bus.Bus

	upgrader websocket.Upgrader
}

// New constructs a chatws Server.
func New(cfg *config.Config, loop *agent.Loop, sessions *session.Manager, b *bus.Bus) *Server {
	s := &Server{cfg: cfg, loop: loop, sessions: sessions, bus: b}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin validates the WebSocket origin against the configured
// allow-list. No configured origins means allow-all (dev mode); an empty
// Origin header (non-browser clients) is always allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Gateway.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a || a == "*" {
			return true
		}
	}
	slog.Warn("chatws.origin_rejected", "origin", origin)
	return false
}

// RegisterRoutes mounts the chat transport's endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
}

// handleWebSocket upgrades the connection, resolves (or lazily creates) the
// session named by the "session" query parameter, and runs the connection's
// read loop until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing ?session= query parameter", http.StatusBadRequest)
		return
	}

	if _, err := s.sessions.Open(r.Context(), sessionID); err != nil {
		model := s.cfg.LLM.DefaultModel
		if _, cerr := s.sessions.Create(r.Context(), sessionID, model); cerr != nil {
			http.Error(w, fmt.Sprintf("open/create session %q: %v", sessionID, cerr), http.StatusInternalServerError)
			return
		}
	}
	s.sessions.SetActive(TransportTag, sessionID)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("chatws.upgrade_failed", "error", err)
		return
	}

	c := newClient(conn, s, sessionID)
	slog.Info("chatws.connected", "session", sessionID)
	c.run(r.Context())
	slog.Info("chatws.disconnected", "session", sessionID)
}

// newLimiter builds a per-connection token bucket from the server's
// configured rate.
func (s *Server) newLimiter() *rate.Limiter {
	if s.cfg.Gateway.RateLimitRPS <= 0 {
		return nil // disabled
	}
	return rate.NewLimiter(rate.Limit(s.cfg.Gateway.RateLimitRPS), 5)
}

// handleHealth reports basic liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","protocol":%d}`, protocol.ProtocolVersion)
}

const writeWait = 10 * time.Second
