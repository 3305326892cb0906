// ABOUTME: WebSocket decoder bridge accepting raw PCM from one sender
// ABOUTME: Negotiates the fixed profile with a JSON hello, then forwards binary frames
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Sendspin/speaker-go/pkg/audio"
	"github.com/gorilla/websocket"
)

const (
	// StreamPath is where senders connect
	StreamPath = "/stream"

	helloTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	maxMessageSize  = 1 << 20
)

// Hello is the first message a sender sends
type Hello struct {
	Name   string       `json:"name,omitempty"`
	Format audio.Format `json:"format"`
}

// Ready acknowledges an accepted hello
type Ready struct {
	Status string       `json:"status"`
	Format audio.Format `json:"format"`
}

// WebSocket is a bridge that accepts a single PCM sender over WebSocket
type WebSocket struct {
	host     string
	upgrader websocket.Upgrader

	mu       sync.Mutex
	nextID   uint64
	current  uint64
	config   Config
	onFrame  FrameFunc
	listener net.Listener
	server   *http.Server
	conn     *websocket.Conn
	busy     bool
	closing  bool
	wg       sync.WaitGroup
}

// NewWebSocket creates a bridge listening on host (empty for all interfaces)
func NewWebSocket(host string) *WebSocket {
	return &WebSocket{
		host: host,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 1024,
			// Senders are native clients on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start listens on cfg.Port and delivers received frames to onFrame
func (b *WebSocket) Start(cfg Config, onFrame FrameFunc) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != 0 {
		return Handle{}, errors.New("bridge already started")
	}
	if onFrame == nil {
		return Handle{}, errors.New("frame callback is required")
	}

	addr := net.JoinHostPort(b.host, fmt.Sprint(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return Handle{}, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(StreamPath, b.handleStream)

	b.nextID++
	b.current = b.nextID
	b.config = cfg
	b.onFrame = onFrame
	b.listener = listener
	b.closing = false
	b.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server := b.server
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Stream listener error: %v", err)
		}
	}()

	log.Printf("Stream bridge listening on %s%s (%s)", listener.Addr(), StreamPath, cfg.Format)
	return Handle{id: b.current}, nil
}

// Addr returns the listen address while started
func (b *WebSocket) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Stop closes the listener and any connected sender. No frames are delivered
// after Stop returns.
func (b *WebSocket) Stop(h Handle) error {
	b.mu.Lock()
	if !h.Valid() || h.id != b.current {
		b.mu.Unlock()
		return nil
	}
	server, conn := b.server, b.conn
	b.closing = true
	b.current = 0
	b.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "speaker stopping"),
			time.Now().Add(time.Second))
		conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(ctx)

	b.wg.Wait()

	b.mu.Lock()
	b.server = nil
	b.listener = nil
	b.onFrame = nil
	b.mu.Unlock()

	log.Printf("Stream bridge stopped")
	if err != nil {
		return fmt.Errorf("shutdown stream listener: %w", err)
	}
	return nil
}

// handleStream upgrades the first sender and rejects the rest
func (b *WebSocket) handleStream(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		http.Error(w, "stopping", http.StatusServiceUnavailable)
		return
	}
	if b.busy {
		b.mu.Unlock()
		log.Printf("Rejecting second sender from %s", r.RemoteAddr)
		http.Error(w, "a sender is already connected", http.StatusConflict)
		return
	}
	b.busy = true
	b.wg.Add(1)
	format, onFrame := b.config.Format, b.onFrame
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.busy = false
		b.conn = nil
		b.mu.Unlock()
		b.wg.Done()
	}()

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return
	}
	b.conn = conn
	b.mu.Unlock()

	log.Printf("Sender connected from %s", r.RemoteAddr)
	b.serve(conn, format, onFrame)
	log.Printf("Sender %s disconnected", r.RemoteAddr)
}

func (b *WebSocket) serve(conn *websocket.Conn, format audio.Format, onFrame FrameFunc) {
	conn.SetReadLimit(maxMessageSize)

	hello, err := readHello(conn)
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "expected hello"),
			time.Now().Add(time.Second))
		return
	}
	if !hello.Format.Compatible(format) {
		log.Printf("Sender %q offered %s, need %s", hello.Name, hello.Format, format)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unsupported format, need "+format.String()),
			time.Now().Add(time.Second))
		return
	}

	if err := conn.WriteJSON(Ready{Status: "ready", Format: format}); err != nil {
		log.Printf("Error sending ready: %v", err)
		return
	}
	log.Printf("Streaming from %q", hello.Name)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Stream read error: %v", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		onFrame(data, len(data))
	}
}

func readHello(conn *websocket.Conn) (Hello, error) {
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer conn.SetReadDeadline(time.Time{})

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return Hello{}, err
	}
	if msgType != websocket.TextMessage {
		return Hello{}, errors.New("hello must be a text message")
	}

	var hello Hello
	if err := json.Unmarshal(data, &hello); err != nil {
		return Hello{}, fmt.Errorf("invalid hello: %w", err)
	}
	return hello, nil
}
