// ABOUTME: PCM sources for the sender: test tone, MP3 and FLAC files
// ABOUTME: Every source yields 44.1kHz stereo 16-bit little-endian PCM
package main

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sendspin/speaker-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// source yields PCM in audio.Profile
type source interface {
	io.Reader
	Close() error
}

// openSource opens path, or a test tone when path is empty
func openSource(path string) (source, error) {
	if path == "" {
		log.Printf("No file given, sending a %.0fHz test tone", toneFrequency)
		return newToneSource(toneFrequency), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return newMP3Source(path)
	case ".flac":
		return newFLACSource(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
	}
}

const toneFrequency = 440.0

// toneSource generates a sine wave at half scale on both channels
type toneSource struct {
	frequency   float64
	sampleIndex uint64
}

func newToneSource(frequency float64) *toneSource {
	return &toneSource{frequency: frequency}
}

// Read fills p with whole sample frames
func (s *toneSource) Read(p []byte) (int, error) {
	frames := len(p) / audio.Profile.FrameSize()

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(audio.SampleRate)
		sample := int16(math.Sin(2*math.Pi*s.frequency*t) * 32767.0 * 0.5)

		audio.PutInt16At(p, i*2, sample)
		audio.PutInt16At(p, i*2+1, sample)
	}
	s.sampleIndex += uint64(frames)

	return frames * audio.Profile.FrameSize(), nil
}

func (s *toneSource) Close() error { return nil }

// mp3Source decodes an MP3 file; the decoder already emits 16-bit stereo
type mp3Source struct {
	file    *os.File
	decoder *mp3.Decoder
}

func newMP3Source(path string) (*mp3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	if decoder.SampleRate() != audio.SampleRate {
		f.Close()
		return nil, fmt.Errorf("MP3 is %d Hz, the speaker only plays %d Hz", decoder.SampleRate(), audio.SampleRate)
	}

	log.Printf("Loaded MP3: %s", filepath.Base(path))
	return &mp3Source{file: f, decoder: decoder}, nil
}

func (s *mp3Source) Read(p []byte) (int, error) {
	return s.decoder.Read(p)
}

func (s *mp3Source) Close() error {
	return s.file.Close()
}

// flacSource decodes a 16-bit FLAC file, duplicating mono to both channels
type flacSource struct {
	file    *os.File
	stream  *flac.Stream
	pending []byte
}

func newFLACSource(path string) (*flacSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	switch {
	case int(info.SampleRate) != audio.SampleRate:
		err = fmt.Errorf("FLAC is %d Hz, the speaker only plays %d Hz", info.SampleRate, audio.SampleRate)
	case info.BitsPerSample != audio.BitDepth:
		err = fmt.Errorf("FLAC is %d-bit, the speaker only plays %d-bit", info.BitsPerSample, audio.BitDepth)
	case info.NChannels < 1 || info.NChannels > audio.Channels:
		err = fmt.Errorf("FLAC has %d channels, the speaker plays at most %d", info.NChannels, audio.Channels)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	log.Printf("Loaded FLAC: %s (%d channels)", filepath.Base(path), info.NChannels)
	return &flacSource{file: f, stream: stream}, nil
}

func (s *flacSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		frame, err := s.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		// Mono has a single subframe, used for both channels
		right := frame.Subframes[len(frame.Subframes)-1]
		s.pending = interleave(frame.Subframes[0].Samples, right.Samples, int(frame.BlockSize))
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *flacSource) Close() error {
	return s.file.Close()
}

// interleave packs blockSize left/right samples into 16-bit stereo PCM
func interleave(left, right []int32, blockSize int) []byte {
	if blockSize > len(left) || blockSize > len(right) {
		blockSize = min(len(left), len(right))
	}
	buf := make([]byte, blockSize*audio.Profile.FrameSize())
	for i := 0; i < blockSize; i++ {
		audio.PutInt16At(buf, i*2, int16(left[i]))
		audio.PutInt16At(buf, i*2+1, int16(right[i]))
	}
	return buf
}
