// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends
package output

import (
	"fmt"

	"github.com/Sendspin/speaker-go/pkg/audio"
)

// Mode selects the output path requested from the platform
type Mode int

const (
	// Standard uses the platform's default buffering
	Standard Mode = iota

	// LowLatency asks for the smallest output buffer the platform offers
	LowLatency
)

func (m Mode) String() string {
	switch m {
	case Standard:
		return "standard"
	case LowLatency:
		return "low-latency"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Device represents an audio output device
type Device interface {
	// Open allocates an output stream for format and starts playback
	Open(format audio.Format, mode Mode) (Stream, error)

	// Name returns the backend name
	Name() string
}

// Stream is an open, playing output stream
type Stream interface {
	// Write outputs PCM bytes (blocks until the device accepts them)
	Write(p []byte) (int, error)

	// Playing reports whether the stream is currently in a playing state
	Playing() bool

	// Close releases the stream; a blocked Write returns an error
	Close() error
}

// New returns the device for a backend name ("oto" or "null")
func New(backend string) (Device, error) {
	switch backend {
	case "", "oto":
		return NewOto(), nil
	case "null":
		return NewNull(true), nil
	default:
		return nil, fmt.Errorf("unknown audio output backend: %q", backend)
	}
}
