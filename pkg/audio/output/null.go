// ABOUTME: Null audio output for hosts without a sound device
// ABOUTME: Discards PCM, optionally consuming it at the real playback rate
package output

import (
	"errors"
	"sync"
	"time"

	"github.com/Sendspin/speaker-go/pkg/audio"
)

// ErrStreamClosed is returned by writes to a closed stream
var ErrStreamClosed = errors.New("output: stream closed")

// Null output device that discards audio
type Null struct {
	paced bool
}

// NewNull creates a null device. When paced is true, writes take as long as
// the audio they carry would take to play.
func NewNull(paced bool) *Null {
	return &Null{paced: paced}
}

// Name returns the backend name
func (n *Null) Name() string {
	return "null"
}

// Open returns a stream that is playing immediately
func (n *Null) Open(format audio.Format, mode Mode) (Stream, error) {
	return &nullStream{
		format: format,
		paced:  n.paced,
		closed: make(chan struct{}),
	}, nil
}

type nullStream struct {
	format    audio.Format
	paced     bool
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *nullStream) Write(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, ErrStreamClosed
	default:
	}

	if !s.paced {
		return len(p), nil
	}

	timer := time.NewTimer(s.format.Duration(len(p)))
	defer timer.Stop()

	select {
	case <-timer.C:
		return len(p), nil
	case <-s.closed:
		return 0, ErrStreamClosed
	}
}

func (s *nullStream) Playing() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

func (s *nullStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
