// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams PCM through a persistent oto player fed by a pipe
package output

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/speaker-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// lowLatencyBuffer is the device buffer requested for the low-latency path
const lowLatencyBuffer = 20 * time.Millisecond

// Oto output device using the oto library.
//
// oto accepts one NewContext call per process, failed or not. The first Open
// picks the buffer size from its mode and the context is kept for the
// lifetime of the Oto value; streams come and go on top of it. A failed
// creation is remembered and every later Open reports its cause, whatever
// the mode. Use one Oto per process.
type Oto struct {
	newContext func(*oto.NewContextOptions) (*oto.Context, chan struct{}, error)

	mu      sync.Mutex
	otoCtx  *oto.Context
	initErr error
	format  audio.Format
	mode    Mode
	streams int
}

// NewOto creates a new Oto output device
func NewOto() *Oto {
	return &Oto{newContext: oto.NewContext}
}

// Name returns the backend name
func (o *Oto) Name() string {
	return "oto"
}

// Open allocates a stream and starts playback immediately
func (o *Oto) Open(format audio.Format, mode Mode) (Stream, error) {
	// oto only supports 16-bit output
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("oto: unsupported bit depth %d (only 16-bit)", format.BitDepth)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx == nil {
		if o.initErr != nil {
			return nil, fmt.Errorf("oto: audio device unavailable: %w", o.initErr)
		}
		if err := o.initContext(format, mode); err != nil {
			return nil, err
		}
	} else {
		if !o.format.Compatible(format) {
			return nil, fmt.Errorf("oto: context already initialized with %s, cannot open %s", o.format, format)
		}
		if mode != o.mode {
			log.Printf("Audio output: context already uses %s path, ignoring %s request", o.mode, mode)
		}
		if o.streams == 0 {
			if err := o.otoCtx.Resume(); err != nil {
				return nil, fmt.Errorf("oto: resume context: %w", err)
			}
		}
	}

	// Create pipe for continuous streaming
	pr, pw := io.Pipe()

	// Persistent player that reads from the pipe
	player := o.otoCtx.NewPlayer(pr)
	player.Play()

	o.streams++

	return &otoStream{
		device: o,
		player: player,
		reader: pr,
		writer: pw,
	}, nil
}

// initContext creates the process-wide oto context (must hold o.mu)
func (o *Oto) initContext(format audio.Format, mode Mode) error {
	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	if mode == LowLatency {
		op.BufferSize = lowLatencyBuffer
	}

	ctx, readyChan, err := o.newContext(op)
	if err != nil {
		o.initErr = err
		return fmt.Errorf("failed to create oto context (%s): %w", mode, err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.format = format
	o.mode = mode

	log.Printf("Audio output initialized: %s (%s)", format, mode)
	return nil
}

// release is called by a stream when it closes
func (o *Oto) release() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.streams--
	if o.streams == 0 && o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Audio output: suspend failed: %v", err)
		}
	}
}

type otoStream struct {
	device *Oto
	player *oto.Player
	reader *io.PipeReader
	writer *io.PipeWriter

	closeOnce sync.Once
}

// Write feeds PCM bytes to the player (blocks until the player reads them)
func (s *otoStream) Write(p []byte) (int, error) {
	n, err := s.writer.Write(p)
	if err != nil {
		return n, fmt.Errorf("pipe write failed: %w", err)
	}
	return n, nil
}

func (s *otoStream) Playing() bool {
	return s.player.IsPlaying()
}

// Close stops the player and releases the pipe
func (s *otoStream) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if err := s.writer.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.player.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close player: %w", err))
		}
		if err := s.reader.Close(); err != nil {
			errs = append(errs, err)
		}
		s.device.release()
	})
	return errors.Join(errs...)
}
