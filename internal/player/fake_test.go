package player

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sendspin/speaker-go/pkg/audio"
	"github.com/Sendspin/speaker-go/pkg/audio/output"
)

var errFakeClosed = errors.New("fake stream closed")

// fakeDevice records opened streams and what was written to them
type fakeDevice struct {
	mu             sync.Mutex
	failLowLatency bool
	failAll        bool
	paused         bool
	gate           chan struct{}
	ignoreClose    bool
	writeErrs      int
	modes          []output.Mode
	open           int
	opened         int
	written        [][]byte
	writers        []int
	entered        chan struct{}
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{entered: make(chan struct{}, 1024)}
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(format audio.Format, mode output.Mode) (output.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.modes = append(d.modes, mode)
	if d.failAll || (d.failLowLatency && mode == output.LowLatency) {
		return nil, errors.New("no output available")
	}
	d.open++
	d.opened++
	return &fakeStream{dev: d, id: d.opened, closed: make(chan struct{})}, nil
}

func (d *fakeDevice) openStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// writesBy counts the frames written through the stream opened id-th
func (d *fakeDevice) writesBy(id int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, w := range d.writers {
		if w == id {
			n++
		}
	}
	return n
}

func (d *fakeDevice) writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.written))
	copy(out, d.written)
	return out
}

type fakeStream struct {
	dev       *fakeDevice
	id        int
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) Write(p []byte) (int, error) {
	s.dev.entered <- struct{}{}

	if s.dev.gate != nil {
		closed := s.closed
		if s.dev.ignoreClose {
			// Models a device write that completes after Close
			closed = nil
		}
		select {
		case <-s.dev.gate:
		case <-closed:
			return 0, errFakeClosed
		}
	}

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if s.dev.writeErrs > 0 {
		s.dev.writeErrs--
		return 0, errors.New("underrun")
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	s.dev.written = append(s.dev.written, buf)
	s.dev.writers = append(s.dev.writers, s.id)
	return len(p), nil
}

func (s *fakeStream) Playing() bool {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return !s.dev.paused
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.dev.mu.Lock()
		s.dev.open--
		s.dev.mu.Unlock()
	})
	return nil
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
