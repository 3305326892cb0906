// ABOUTME: Audio type definitions
// ABOUTME: Defines the fixed PCM profile, stream formats and PCM frames
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// SampleRate is the fixed rendering sample rate in Hz
	SampleRate = 44100

	// Channels is the fixed channel count (interleaved stereo)
	Channels = 2

	// BitDepth is the fixed sample width in bits (signed, little-endian)
	BitDepth = 16
)

// Profile is the session-wide audio profile every frame is interpreted under
var Profile = Format{
	Codec:      "pcm",
	SampleRate: SampleRate,
	Channels:   Channels,
	BitDepth:   BitDepth,
}

var (
	// ErrEmptyFrame is returned for frames with no sample bytes
	ErrEmptyFrame = errors.New("audio: empty frame")

	// ErrPartialFrame is returned when a frame does not hold whole sample frames
	ErrPartialFrame = errors.New("audio: frame length is not a multiple of the sample frame size")
)

// Format describes audio stream format
type Format struct {
	Codec      string `json:"codec,omitempty"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// BytesPerSample returns the width of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameSize returns the size in bytes of one sample across all channels
func (f Format) FrameSize() int {
	return f.Channels * f.BytesPerSample()
}

// BytesPerSecond returns the PCM data rate
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Duration returns how long n bytes of PCM last when played
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// BytesFor returns the number of bytes covering d, rounded down to whole sample frames
func (f Format) BytesFor(d time.Duration) int {
	frames := int(int64(d) * int64(f.SampleRate) / int64(time.Second))
	return frames * f.FrameSize()
}

// Compatible reports whether f carries the same PCM layout as other
func (f Format) Compatible(other Format) bool {
	return f.SampleRate == other.SampleRate &&
		f.Channels == other.Channels &&
		f.BitDepth == other.BitDepth
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// Frame is one discrete unit of decoded PCM audio
type Frame struct {
	Data []byte
}

// Len returns the frame length in bytes
func (f Frame) Len() int {
	return len(f.Data)
}

// Validate checks that the frame holds a positive number of whole sample frames
func (f Frame) Validate(format Format) error {
	if len(f.Data) == 0 {
		return ErrEmptyFrame
	}
	size := format.FrameSize()
	if size <= 0 || len(f.Data)%size != 0 {
		return fmt.Errorf("%w: %d bytes, frame size %d", ErrPartialFrame, len(f.Data), size)
	}
	return nil
}

// Int16At reads the i-th 16-bit sample of a little-endian PCM buffer
func Int16At(data []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(data[i*2:]))
}

// PutInt16At writes the i-th 16-bit sample of a little-endian PCM buffer
func PutInt16At(data []byte, i int, sample int16) {
	binary.LittleEndian.PutUint16(data[i*2:], uint16(sample))
}
