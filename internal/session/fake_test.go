package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sendspin/speaker-go/internal/bridge"
	"github.com/Sendspin/speaker-go/internal/discovery"
	"github.com/Sendspin/speaker-go/internal/hotspot"
	"github.com/Sendspin/speaker-go/pkg/audio"
)

// callLog records collaborator calls across fakes in order
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.list() {
		if c == call {
			n++
		}
	}
	return n
}

// fakeAccessPoint reports creds immediately unless manual is set. In manual
// mode a cancelled start reports ctx.Err() unless ignoreCancel is set.
type fakeAccessPoint struct {
	log          *callLog
	creds        hotspot.Credentials
	err          error
	stopErr      error
	manual       bool
	ignoreCancel bool

	mu      sync.Mutex
	cb      hotspot.Callbacks
	started chan struct{}
}

func (a *fakeAccessPoint) Start(ctx context.Context, cb hotspot.Callbacks) {
	a.log.add("ap.start")
	a.mu.Lock()
	a.cb = cb
	a.mu.Unlock()

	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.manual {
		if !a.ignoreCancel {
			go func() {
				<-ctx.Done()
				cb.OnFailed(ctx.Err())
			}()
		}
		return
	}
	go func() {
		if a.err != nil {
			cb.OnFailed(a.err)
			return
		}
		cb.OnStarted(a.creds)
	}()
}

func (a *fakeAccessPoint) Stop() error {
	a.log.add("ap.stop")
	return a.stopErr
}

func (a *fakeAccessPoint) callbacks() hotspot.Callbacks {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cb
}

type fakePlayback struct {
	log      *callLog
	startErr error

	mu        sync.Mutex
	running   bool
	submitted int
}

func (p *fakePlayback) Start() error {
	p.log.add("playback.start")
	if p.startErr != nil {
		return p.startErr
	}
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	return nil
}

func (p *fakePlayback) Stop() {
	p.log.add("playback.stop")
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *fakePlayback) SubmitFrame(audio.Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted++
	return p.running
}

func (p *fakePlayback) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

type fakeBridge struct {
	log      *callLog
	startErr error
	stopErr  error
	config   bridge.Config
}

func (b *fakeBridge) Start(cfg bridge.Config, onFrame bridge.FrameFunc) (bridge.Handle, error) {
	b.log.add("bridge.start")
	b.config = cfg
	if b.startErr != nil {
		return bridge.Handle{}, b.startErr
	}
	return bridge.Handle{}, nil
}

func (b *fakeBridge) Stop(bridge.Handle) error {
	b.log.add("bridge.stop")
	return b.stopErr
}

// fakeAdvertiser reports err asynchronously unless manual is set
type fakeAdvertiser struct {
	log     *callLog
	err     error
	stopErr error
	manual  bool

	mu  sync.Mutex
	svc discovery.Service
}

func (a *fakeAdvertiser) Start(ctx context.Context, svc discovery.Service, done func(error)) {
	a.log.add("advertiser.start")
	a.mu.Lock()
	a.svc = svc
	a.mu.Unlock()

	if a.manual {
		go func() {
			<-ctx.Done()
			done(ctx.Err())
		}()
		return
	}
	go done(a.err)
}

func (a *fakeAdvertiser) Stop() error {
	a.log.add("advertiser.stop")
	return a.stopErr
}

func (a *fakeAdvertiser) service() discovery.Service {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.svc
}

// eventRecorder collects emitted events
type eventRecorder struct {
	mu     sync.Mutex
	events []StatusEvent
	ch     chan StatusEvent
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan StatusEvent, 64)}
}

func (r *eventRecorder) onStatus(ev StatusEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.ch <- ev
}

func (r *eventRecorder) next(t *testing.T) StatusEvent {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status event")
		return StatusEvent{}
	}
}

func (r *eventRecorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func (r *eventRecorder) all() []StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusEvent(nil), r.events...)
}

// harness wires a controller to fakes and runs it
type harness struct {
	log        *callLog
	ap         *fakeAccessPoint
	playback   *fakePlayback
	bridge     *fakeBridge
	advertiser *fakeAdvertiser
	events     *eventRecorder
	released   chan struct{}
	ctrl       *Controller
}

func newHarness(t *testing.T, configure func(h *harness, cfg *Config)) *harness {
	t.Helper()
	l := &callLog{}
	h := &harness{
		log:        l,
		ap:         &fakeAccessPoint{log: l, creds: hotspot.Credentials{SSID: "Speaker_A1", Passphrase: "musicstream2024"}},
		playback:   &fakePlayback{log: l},
		bridge:     &fakeBridge{log: l},
		advertiser: &fakeAdvertiser{log: l},
		events:     newEventRecorder(),
		released:   make(chan struct{}, 16),
	}

	cfg := Config{
		DeviceName:  "Living Room Speaker",
		AccessPoint: h.ap,
		Playback:    h.playback,
		Bridge:      h.bridge,
		Advertiser:  h.advertiser,
		OnStatus:    h.events.onStatus,
		OnRelease:   func() { h.released <- struct{}{} },
	}
	if configure != nil {
		configure(h, &cfg)
	}

	ctrl, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.ctrl = ctrl

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) waitReleased(t *testing.T) {
	t.Helper()
	select {
	case <-h.released:
	case <-time.After(2 * time.Second):
		t.Fatal("OnRelease was not called")
	}
}
