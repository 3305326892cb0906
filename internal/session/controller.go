// ABOUTME: Session controller sequencing access point, playback, bridge and advertisement
// ABOUTME: A single goroutine owns all session state; collaborators report back through messages
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/speaker-go/internal/bridge"
	"github.com/Sendspin/speaker-go/internal/discovery"
	"github.com/Sendspin/speaker-go/internal/hotspot"
	"github.com/Sendspin/speaker-go/internal/observe"
	"github.com/Sendspin/speaker-go/pkg/audio"
)

const (
	// DefaultPort is the stream listen port published in the service record
	DefaultPort = 5000

	// DefaultStartTimeout bounds how long a session may stay Starting
	DefaultStartTimeout = 30 * time.Second

	messageBuffer = 32
)

// Playback renders submitted frames
type Playback interface {
	Start() error
	Stop()
	SubmitFrame(audio.Frame) bool
}

// Advertiser publishes the service record
type Advertiser interface {
	Start(ctx context.Context, svc discovery.Service, done func(error))
	Stop() error
}

// Config holds the controller's collaborators and settings
type Config struct {
	// DeviceName is the human-readable name; it is sanitized before advertising
	DeviceName string

	// Port is shared by the bridge and the service record
	Port int

	// ServiceType defaults to discovery.DefaultServiceType
	ServiceType string

	// Model and Version are published in the service record
	Model   string
	Version string

	AccessPoint hotspot.Provider
	Playback    Playback
	Bridge      bridge.Bridge
	Advertiser  Advertiser

	// StartTimeout aborts a session stuck in Starting
	StartTimeout time.Duration

	// Metrics is optional
	Metrics *observe.Metrics

	// OnStatus is called on the controller goroutine for every event; it must not block
	OnStatus func(StatusEvent)

	// OnRelease is called whenever a stop request or failure leaves the controller idle
	OnRelease func()
}

// Controller is the session state machine
type Controller struct {
	config Config
	msgs   chan message
	done   chan struct{}
	events *broadcaster

	// session is owned by the Run goroutine
	session *Session

	mu    sync.RWMutex
	state State
	last  StatusEvent
}

// New creates a controller. Run must be called to process requests.
func New(config Config) (*Controller, error) {
	if config.AccessPoint == nil || config.Playback == nil || config.Advertiser == nil {
		return nil, errors.New("access point, playback and advertiser are required")
	}
	if config.Bridge == nil {
		config.Bridge = bridge.Unavailable{}
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.ServiceType == "" {
		config.ServiceType = discovery.DefaultServiceType
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = DefaultStartTimeout
	}

	return &Controller{
		config: config,
		msgs:   make(chan message, messageBuffer),
		done:   make(chan struct{}),
		events: newBroadcaster(),
		last:   StatusEvent{Status: StatusStopped},
	}, nil
}

// StartSession requests a new session. Ignored while one is active.
func (c *Controller) StartSession() {
	c.post(startRequest{})
}

// StopSession requests the current session to stop. With no session it only
// triggers OnRelease.
func (c *Controller) StopSession() {
	c.post(stopRequest{})
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Status returns the most recent event
func (c *Controller) Status() StatusEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Subscribe returns a channel of future events and a cancel function.
// Events are dropped for subscribers that fall behind.
func (c *Controller) Subscribe() (<-chan StatusEvent, func()) {
	return c.events.subscribe()
}

// Run processes requests until ctx is done, then tears down any active session
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.events.closeAll()

	for {
		select {
		case <-ctx.Done():
			if s := c.session; s != nil {
				c.teardown(s, "shutting down", "")
			}
			return nil
		case m := <-c.msgs:
			c.handle(m)
		}
	}
}

func (c *Controller) post(m message) {
	select {
	case c.msgs <- m:
	case <-c.done:
		log.Printf("Controller stopped, dropping %T", m)
	}
}

func (c *Controller) handle(m message) {
	switch m := m.(type) {
	case startRequest:
		c.handleStart()
	case stopRequest:
		c.handleStop()
	default:
		s := c.session
		if s == nil || s.id != m.sessionID() {
			log.Printf("Ignoring %T for stale session %s", m, m.sessionID())
			return
		}
		switch m := m.(type) {
		case accessPointStarted:
			c.onAccessPointStarted(s, m.creds)
		case accessPointFailed:
			c.onAccessPointFailed(s, m.err)
		case accessPointStopped:
			c.onAccessPointStopped(s)
		case advertised:
			c.onAdvertised(s, m.err)
		case startTimedOut:
			if s.state == Starting {
				c.fail(s, "timeout", fmt.Errorf("session did not start within %v", c.config.StartTimeout))
			}
		}
	}
}

func (c *Controller) handleStart() {
	if s := c.session; s != nil {
		log.Printf("Session %s already %s, ignoring start request", s.id, s.state)
		return
	}

	s := newSession(c.config.Port)
	c.session = s
	c.setState(Starting)
	log.Printf("Starting session %s", s.id)
	c.emit(StatusEvent{Status: StatusStarting, SessionID: s.id, Port: s.port})

	id := s.id
	s.timer = time.AfterFunc(c.config.StartTimeout, func() {
		c.post(startTimedOut{id: id})
	})

	s.accessPointRequested = true
	c.config.AccessPoint.Start(s.ctx, hotspot.Callbacks{
		OnStarted: func(creds hotspot.Credentials) { c.post(accessPointStarted{id: id, creds: creds}) },
		OnFailed:  func(err error) { c.post(accessPointFailed{id: id, err: err}) },
		OnStopped: func() { c.post(accessPointStopped{id: id}) },
	})
}

func (c *Controller) handleStop() {
	s := c.session
	if s == nil {
		log.Printf("No active session, releasing")
		c.release()
		return
	}

	switch s.state {
	case Starting:
		if s.stopPending {
			return
		}
		// Teardown waits for the pending collaborator to report back
		log.Printf("Stop requested while session %s is starting", s.id)
		s.stopPending = true
		s.cancel()
	case Running:
		c.teardown(s, "", "")
	}
}

func (c *Controller) onAccessPointStarted(s *Session, creds hotspot.Credentials) {
	s.accessPointUp = true
	if s.state != Starting {
		return
	}
	if s.stopPending {
		c.teardown(s, "", "")
		return
	}

	s.creds = creds
	log.Printf("Access point %q ready for session %s", creds.SSID, s.id)

	if err := c.config.Playback.Start(); err != nil {
		c.fail(s, "playback", fmt.Errorf("audio output: %w", err))
		return
	}
	s.playbackStarted = true

	handle, err := c.config.Bridge.Start(bridge.Config{Port: s.port, Format: audio.Profile},
		bridge.Forward(c.config.Playback.SubmitFrame))
	if err != nil {
		s.degraded = true
		if errors.Is(err, bridge.ErrUnavailable) {
			log.Printf("No stream decoder on this host, running silent")
		} else {
			log.Printf("Stream bridge failed, running silent: %v", err)
		}
	} else {
		s.bridgeHandle = handle
		s.bridgeStarted = true
	}

	s.advertisedName = discovery.SanitizeName(c.config.DeviceName)
	s.advertising = true
	id := s.id
	c.config.Advertiser.Start(s.ctx, discovery.Service{
		Name:      s.advertisedName,
		Type:      c.config.ServiceType,
		Port:      s.port,
		Protected: creds.Passphrase != "",
		Model:     c.config.Model,
		Version:   c.config.Version,
		Interface: creds.Interface,
	}, func(err error) {
		c.post(advertised{id: id, err: err})
	})
}

func (c *Controller) onAccessPointFailed(s *Session, err error) {
	if s.state != Starting {
		return
	}
	if s.stopPending {
		c.teardown(s, "", "")
		return
	}
	c.fail(s, "access_point", fmt.Errorf("access point: %w", err))
}

func (c *Controller) onAccessPointStopped(s *Session) {
	s.accessPointUp = false
	if s.state == Running || (s.state == Starting && !s.stopPending) {
		c.fail(s, "access_point_lost", errors.New("access point stopped"))
	}
}

func (c *Controller) onAdvertised(s *Session, err error) {
	if s.state != Starting {
		return
	}
	if s.stopPending {
		c.teardown(s, "", "")
		return
	}
	if err != nil {
		c.fail(s, "advertiser", fmt.Errorf("advertise: %w", err))
		return
	}

	s.timer.Stop()
	s.state = Running
	c.setState(Running)
	if c.config.Metrics != nil {
		c.config.Metrics.SessionsStarted.Add(context.Background(), 1)
		c.config.Metrics.ActiveSessions.Add(context.Background(), 1)
	}

	log.Printf("Session %s running as %q on %q", s.id, s.advertisedName, s.creds.SSID)
	c.emit(StatusEvent{
		Status:         StatusRunning,
		SessionID:      s.id,
		SSID:           s.creds.SSID,
		Passphrase:     s.creds.Passphrase,
		AdvertisedName: s.advertisedName,
		Port:           s.port,
		Degraded:       s.degraded,
	})
}

// fail tears the session down because of err
func (c *Controller) fail(s *Session, stage string, err error) {
	log.Printf("Session %s failed: %v", s.id, err)
	c.teardown(s, err.Error(), stage)
}

// teardown releases what s started in reverse order, then reports Stopped.
// Every step runs even if an earlier one fails.
func (c *Controller) teardown(s *Session, reason, failedStage string) {
	wasRunning := s.state == Running
	s.state = Stopping
	c.setState(Stopping)
	s.timer.Stop()
	s.cancel()

	if s.bridgeStarted {
		if err := c.config.Bridge.Stop(s.bridgeHandle); err != nil {
			log.Printf("Error stopping stream bridge: %v", err)
		}
	}
	if s.playbackStarted {
		c.config.Playback.Stop()
	}
	if s.advertising {
		if err := c.config.Advertiser.Stop(); err != nil {
			log.Printf("Error withdrawing service record: %v", err)
		}
	}
	if s.accessPointRequested {
		if err := c.config.AccessPoint.Stop(); err != nil {
			log.Printf("Error stopping access point: %v", err)
		}
	}

	if c.config.Metrics != nil {
		ctx := context.Background()
		if wasRunning {
			c.config.Metrics.ActiveSessions.Add(ctx, -1)
		}
		if failedStage != "" {
			c.config.Metrics.RecordSessionFailure(ctx, failedStage)
		}
	}

	c.session = nil
	c.setState(Idle)
	log.Printf("Session %s stopped", s.id)
	c.emit(StatusEvent{Status: StatusStopped, SessionID: s.id, Reason: reason})
	c.release()
}

func (c *Controller) release() {
	if c.config.OnRelease != nil {
		c.config.OnRelease()
	}
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Controller) emit(ev StatusEvent) {
	ev.At = time.Now()

	c.mu.Lock()
	c.last = ev
	c.mu.Unlock()

	if c.config.OnStatus != nil {
		c.config.OnStatus(ev)
	}
	c.events.publish(ev)
}
