// ABOUTME: Decoder bridge contract between an inbound audio session and playback
// ABOUTME: Bridges deliver PCM through a frame callback and may be unavailable
package bridge

import (
	"errors"

	"github.com/Sendspin/speaker-go/pkg/audio"
)

// ErrUnavailable is returned by Start when no decoder exists on this host
var ErrUnavailable = errors.New("decoder bridge unavailable")

// Config is what a bridge needs to accept a stream
type Config struct {
	Port   int
	Format audio.Format
}

// FrameFunc receives one decoded unit. Only buf[:length] is valid.
type FrameFunc func(buf []byte, length int)

// Handle identifies a started bridge session. The zero Handle is safe to Stop.
type Handle struct {
	id uint64
}

// Valid reports whether h refers to a started session
func (h Handle) Valid() bool {
	return h.id != 0
}

// Bridge receives an inbound stream and delivers PCM frames
type Bridge interface {
	Start(cfg Config, onFrame FrameFunc) (Handle, error)
	Stop(h Handle) error
}

// Forward builds a FrameFunc that copies the valid prefix of each buffer
// and hands it to submit. submit must not block.
func Forward(submit func(audio.Frame) bool) FrameFunc {
	return func(buf []byte, length int) {
		if length <= 0 || len(buf) == 0 {
			return
		}
		if length > len(buf) {
			length = len(buf)
		}
		data := make([]byte, length)
		copy(data, buf[:length])
		submit(audio.Frame{Data: data})
	}
}

// New creates a bridge by name: "websocket" or "none"
func New(kind string) (Bridge, error) {
	switch kind {
	case "", "websocket":
		return NewWebSocket(""), nil
	case "none":
		return Unavailable{}, nil
	default:
		return nil, errors.New("unknown bridge " + kind)
	}
}
