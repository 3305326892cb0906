// ABOUTME: HTTP control API for starting, stopping and watching the speaker session
// ABOUTME: Also serves health and Prometheus metrics
package control

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Sendspin/speaker-go/internal/player"
	"github.com/Sendspin/speaker-go/internal/session"
	"github.com/Sendspin/speaker-go/internal/version"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Sessions is the controller surface the API exposes
type Sessions interface {
	StartSession()
	StopSession()
	Status() session.StatusEvent
	Subscribe() (<-chan session.StatusEvent, func())
}

// StatsFunc returns current playback counters
type StatsFunc func() player.Stats

// SessionResponse is the body of GET /session
type SessionResponse struct {
	Session  session.StatusEvent `json:"session"`
	Playback *player.Stats       `json:"playback,omitempty"`
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Server serves the control API
type Server struct {
	sessions Sessions
	stats    StatsFunc
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer creates the control API. stats may be nil; a nil metrics handler
// serves the default Prometheus registry.
func NewServer(sessions Sessions, stats StatsFunc, metrics http.Handler) *Server {
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	s := &Server{
		sessions: sessions,
		stats:    stats,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Allow non-browser clients (no Origin header)
					return true
				}
				log.Printf("Warning: accepting WebSocket from origin: %s", origin)
				return true
			},
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /session/start", s.handleStart)
	s.mux.HandleFunc("POST /session/stop", s.handleStop)
	s.mux.HandleFunc("GET /session", s.handleStatus)
	s.mux.HandleFunc("GET /session/events", s.handleEvents)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics)
	return s
}

// Handler returns the API's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Control API listening on %s", listener.Addr())
		if err := httpServer.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Control API shutdown error: %v", err)
	}
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.sessions.StartSession()
	writeJSON(w, http.StatusAccepted, s.snapshot())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.sessions.StopSession()
	writeJSON(w, http.StatusAccepted, s.snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: version.Version})
}

func (s *Server) snapshot() SessionResponse {
	resp := SessionResponse{Session: s.sessions.Status()}
	if s.stats != nil {
		stats := s.stats()
		resp.Playback = &stats
	}
	return resp
}

// handleEvents streams status events over a WebSocket, starting with the current status
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, cancel := s.sessions.Subscribe()
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Reads only to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.sessions.Status()); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "speaker shutting down"),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("Event stream write error: %v", err)
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// writeJSON encodes v as JSON and writes it with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
