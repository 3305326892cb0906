// ABOUTME: Bounded jitter buffer between the frame producer and the renderer
// ABOUTME: Offer never blocks and drops on overrun; Take blocks until a frame or cancellation
package player

import (
	"context"

	"github.com/Sendspin/speaker-go/pkg/audio"
)

// DefaultBufferFrames keeps the buffer shallow so end-to-end latency stays bounded
const DefaultBufferFrames = 10

// JitterBuffer is a bounded FIFO of pending frames
type JitterBuffer struct {
	frames chan audio.Frame
}

// NewJitterBuffer creates a buffer holding at most capacity frames
func NewJitterBuffer(capacity int) *JitterBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferFrames
	}
	return &JitterBuffer{
		frames: make(chan audio.Frame, capacity),
	}
}

// Offer enqueues a frame. It returns false, dropping the frame, when the buffer is full.
func (b *JitterBuffer) Offer(frame audio.Frame) bool {
	select {
	case b.frames <- frame:
		return true
	default:
		return false
	}
}

// Take removes the oldest frame, waiting until one arrives or ctx is done
func (b *JitterBuffer) Take(ctx context.Context) (audio.Frame, error) {
	select {
	case frame := <-b.frames:
		return frame, nil
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	}
}

// Clear discards all pending frames and returns how many were removed
func (b *JitterBuffer) Clear() int {
	n := 0
	for {
		select {
		case <-b.frames:
			n++
		default:
			return n
		}
	}
}

// Len returns the number of pending frames
func (b *JitterBuffer) Len() int {
	return len(b.frames)
}

// Cap returns the buffer capacity
func (b *JitterBuffer) Cap() int {
	return cap(b.frames)
}
