// ABOUTME: Per-session state and the messages posted to the controller
// ABOUTME: Collaborator messages carry the session ID so stale ones can be ignored
package session

import (
	"context"
	"time"

	"github.com/Sendspin/speaker-go/internal/bridge"
	"github.com/Sendspin/speaker-go/internal/hotspot"
	"github.com/google/uuid"
)

// Session is the single speaker-mode instance. It holds every subsystem
// handle and is dropped when the controller returns to Idle.
type Session struct {
	id    string
	state State
	port  int

	// ctx is cancelled to abandon pending access point or advertiser work
	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer

	creds          hotspot.Credentials
	advertisedName string
	degraded       bool

	accessPointRequested bool
	accessPointUp        bool
	playbackStarted      bool
	bridgeStarted        bool
	bridgeHandle         bridge.Handle
	advertising          bool

	stopPending bool
}

func newSession(port int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:     uuid.New().String(),
		state:  Starting,
		port:   port,
		ctx:    ctx,
		cancel: cancel,
	}
}

// message is anything posted to the controller goroutine
type message interface {
	sessionID() string
}

type startRequest struct{}

type stopRequest struct{}

type accessPointStarted struct {
	id    string
	creds hotspot.Credentials
}

type accessPointFailed struct {
	id  string
	err error
}

type accessPointStopped struct {
	id string
}

type advertised struct {
	id  string
	err error
}

type startTimedOut struct {
	id string
}

func (startRequest) sessionID() string         { return "" }
func (stopRequest) sessionID() string          { return "" }
func (m accessPointStarted) sessionID() string { return m.id }
func (m accessPointFailed) sessionID() string  { return m.id }
func (m accessPointStopped) sessionID() string { return m.id }
func (m advertised) sessionID() string         { return m.id }
func (m startTimedOut) sessionID() string      { return m.id }
