// ABOUTME: Audio output interface tests
// ABOUTME: Verifies Device implementations and null stream behaviour
package output

import (
	"errors"
	"testing"
	"time"

	"github.com/Sendspin/speaker-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

func TestOtoImplementsDevice(t *testing.T) {
	var _ Device = (*Oto)(nil)
}

func TestNullImplementsDevice(t *testing.T) {
	var _ Device = (*Null)(nil)
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		name    string
		wantErr bool
	}{
		{"", "oto", false},
		{"oto", "oto", false},
		{"null", "null", false},
		{"alsa", "", true},
	}

	for _, tt := range tests {
		dev, err := New(tt.backend)
		if tt.wantErr {
			if err == nil {
				t.Errorf("backend %q: expected error", tt.backend)
			}
			continue
		}
		if err != nil {
			t.Errorf("backend %q: unexpected error %v", tt.backend, err)
			continue
		}
		if dev.Name() != tt.name {
			t.Errorf("backend %q: expected name %s, got %s", tt.backend, tt.name, dev.Name())
		}
	}
}

func TestOtoRejectsUnsupportedBitDepth(t *testing.T) {
	dev := NewOto()
	format := audio.Profile
	format.BitDepth = 24

	if _, err := dev.Open(format, LowLatency); err == nil {
		t.Error("expected error for 24-bit format")
	}
}

func TestOtoCreatesContextOnce(t *testing.T) {
	cause := errors.New("no playback device")
	var sizes []time.Duration

	dev := NewOto()
	dev.newContext = func(op *oto.NewContextOptions) (*oto.Context, chan struct{}, error) {
		sizes = append(sizes, op.BufferSize)
		return nil, nil, cause
	}

	if _, err := dev.Open(audio.Profile, LowLatency); !errors.Is(err, cause) {
		t.Errorf("expected low-latency open to fail with %v, got %v", cause, err)
	}
	if _, err := dev.Open(audio.Profile, Standard); !errors.Is(err, cause) {
		t.Errorf("expected standard open to report the original cause, got %v", err)
	}

	if len(sizes) != 1 {
		t.Fatalf("expected one context creation, got %d", len(sizes))
	}
	if sizes[0] != lowLatencyBuffer {
		t.Errorf("expected buffer %v for the low-latency path, got %v", lowLatencyBuffer, sizes[0])
	}
}

func TestModeString(t *testing.T) {
	if LowLatency.String() != "low-latency" {
		t.Errorf("expected low-latency, got %s", LowLatency.String())
	}
	if Standard.String() != "standard" {
		t.Errorf("expected standard, got %s", Standard.String())
	}
}

func TestNullStreamUnpaced(t *testing.T) {
	stream, err := NewNull(false).Open(audio.Profile, LowLatency)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if !stream.Playing() {
		t.Error("expected stream to be playing after Open")
	}

	n, err := stream.Write(make([]byte, 1764))
	if err != nil || n != 1764 {
		t.Errorf("expected 1764 bytes written, got %d (%v)", n, err)
	}

	if err := stream.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if stream.Playing() {
		t.Error("expected stream not playing after Close")
	}
	if _, err := stream.Write(make([]byte, 4)); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed, got %v", err)
	}
}

func TestNullStreamCloseUnblocksWrite(t *testing.T) {
	stream, err := NewNull(true).Open(audio.Profile, Standard)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		// 10 seconds of audio
		_, err := stream.Write(make([]byte, audio.Profile.BytesPerSecond()*10))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	stream.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Write did not return after Close")
	}
}
