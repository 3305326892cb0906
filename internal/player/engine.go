// ABOUTME: Playback engine rendering PCM frames to the audio output
// ABOUTME: Owns the jitter buffer, the output stream and the rendering goroutine
package player

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sendspin/speaker-go/internal/observe"
	"github.com/Sendspin/speaker-go/pkg/audio"
	"github.com/Sendspin/speaker-go/pkg/audio/output"
)

// DefaultJoinTimeout bounds how long Stop waits for the rendering goroutine
const DefaultJoinTimeout = time.Second

// dropLogInterval rate-limits overrun logging on the submit path
const dropLogInterval = 100

// Config holds engine configuration
type Config struct {
	// Device allocates the output stream
	Device output.Device

	// Format is the PCM profile frames are validated and rendered under.
	// Defaults to audio.Profile.
	Format audio.Format

	// BufferFrames is the jitter buffer capacity. Defaults to DefaultBufferFrames.
	BufferFrames int

	// JoinTimeout bounds the wait for the rendering goroutine on Stop
	JoinTimeout time.Duration

	// Volume is the initial software volume (0-100). Zero means 100.
	Volume int

	// Metrics is optional
	Metrics *observe.Metrics
}

// Stats is a snapshot of engine counters
type Stats struct {
	Submitted   int64
	Rendered    int64
	Dropped     int64
	Rejected    int64
	WriteErrors int64
	Buffered    int
}

// Engine renders a bursty sequence of frames with bounded latency.
// SubmitFrame never blocks.
type Engine struct {
	config Config
	buffer *JitterBuffer

	// mu serializes Start and Stop
	mu      sync.Mutex
	running atomic.Bool
	stream  output.Stream
	cancel  context.CancelFunc
	done    chan struct{}

	volume atomic.Int32
	muted  atomic.Bool

	submitted   atomic.Int64
	rendered    atomic.Int64
	dropped     atomic.Int64
	rejected    atomic.Int64
	writeErrors atomic.Int64
}

// NewEngine creates a stopped playback engine
func NewEngine(config Config) *Engine {
	if config.Format.SampleRate == 0 {
		config.Format = audio.Profile
	}
	if config.BufferFrames <= 0 {
		config.BufferFrames = DefaultBufferFrames
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = DefaultJoinTimeout
	}
	if config.Volume == 0 {
		config.Volume = 100
	}

	e := &Engine{
		config: config,
		buffer: NewJitterBuffer(config.BufferFrames),
	}
	e.volume.Store(int32(clampVolume(config.Volume)))
	return e
}

// Start allocates the output stream and launches the rendering goroutine.
// The low-latency path is tried first, then the standard path.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		log.Printf("Playback engine already running")
		return nil
	}
	if e.config.Device == nil {
		return fmt.Errorf("open audio output: no output device configured")
	}

	stream, err := e.config.Device.Open(e.config.Format, output.LowLatency)
	if err != nil {
		log.Printf("Low-latency output unavailable on %s, falling back: %v", e.config.Device.Name(), err)
		stream, err = e.config.Device.Open(e.config.Format, output.Standard)
		if err != nil {
			return fmt.Errorf("open audio output: %w", err)
		}
	}

	e.buffer.Clear()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.stream = stream
	e.cancel = cancel
	e.done = done
	e.running.Store(true)

	go e.render(ctx, stream, done)

	log.Printf("Playback engine started: %s, buffer %d frames", e.config.Format, e.buffer.Cap())
	return nil
}

// Stop terminates the rendering goroutine, releases the output stream and
// clears pending frames
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() {
		return
	}
	e.running.Store(false)
	e.cancel()

	timer := time.NewTimer(e.config.JoinTimeout)
	select {
	case <-e.done:
		timer.Stop()
	case <-timer.C:
		log.Printf("Render loop did not exit within %v, releasing output anyway", e.config.JoinTimeout)
	}

	if err := e.stream.Close(); err != nil {
		log.Printf("Error closing audio output: %v", err)
	}
	cleared := e.buffer.Clear()

	e.stream = nil
	e.cancel = nil
	log.Printf("Playback engine stopped (%d pending frames discarded)", cleared)
}

// Running reports whether the engine accepts frames
func (e *Engine) Running() bool {
	return e.running.Load()
}

// SubmitFrame hands a frame to the engine. It returns false when the frame was
// rejected or dropped.
func (e *Engine) SubmitFrame(frame audio.Frame) bool {
	if !e.running.Load() {
		e.reject()
		return false
	}
	if err := frame.Validate(e.config.Format); err != nil {
		e.reject()
		return false
	}

	if !e.buffer.Offer(frame) {
		n := e.dropped.Add(1)
		if e.config.Metrics != nil {
			e.config.Metrics.FramesDropped.Add(context.Background(), 1)
		}
		if n == 1 || n%dropLogInterval == 0 {
			log.Printf("Jitter buffer full, dropped frame (%d dropped total)", n)
		}
		return false
	}

	e.submitted.Add(1)
	if e.config.Metrics != nil {
		e.config.Metrics.FramesSubmitted.Add(context.Background(), 1)
	}
	return true
}

func (e *Engine) reject() {
	e.rejected.Add(1)
	if e.config.Metrics != nil {
		e.config.Metrics.FramesRejected.Add(context.Background(), 1)
	}
}

// render is the rendering loop. It exits when ctx is cancelled.
func (e *Engine) render(ctx context.Context, stream output.Stream, done chan struct{}) {
	defer close(done)

	for {
		// A loop that outlived its Stop must leave buffered frames to the next Start
		if ctx.Err() != nil {
			return
		}
		frame, err := e.buffer.Take(ctx)
		if err != nil {
			return
		}
		if !stream.Playing() {
			continue
		}

		applyVolume(frame.Data, int(e.volume.Load()), e.muted.Load())

		if _, err := stream.Write(frame.Data); err != nil {
			if ctx.Err() != nil {
				return
			}
			n := e.writeErrors.Add(1)
			if e.config.Metrics != nil {
				e.config.Metrics.WriteErrors.Add(ctx, 1)
			}
			log.Printf("Audio output write failed (%d total): %v", n, err)
			continue
		}

		e.rendered.Add(1)
		if e.config.Metrics != nil {
			e.config.Metrics.FramesRendered.Add(ctx, 1)
		}
	}
}

// SetVolume sets the volume (0-100)
func (e *Engine) SetVolume(volume int) {
	volume = clampVolume(volume)
	e.volume.Store(int32(volume))
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (e *Engine) SetMuted(muted bool) {
	e.muted.Store(muted)
	log.Printf("Muted: %v", muted)
}

// Volume returns current volume
func (e *Engine) Volume() int {
	return int(e.volume.Load())
}

// Muted returns mute state
func (e *Engine) Muted() bool {
	return e.muted.Load()
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	return Stats{
		Submitted:   e.submitted.Load(),
		Rendered:    e.rendered.Load(),
		Dropped:     e.dropped.Load(),
		Rejected:    e.rejected.Load(),
		WriteErrors: e.writeErrors.Load(),
		Buffered:    e.buffer.Len(),
	}
}
