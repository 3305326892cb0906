// ABOUTME: Tests for the playback engine
// ABOUTME: Tests overrun drops, FIFO rendering, start/stop cycles and output fallback
package player

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/Sendspin/speaker-go/internal/observe"
	"github.com/Sendspin/speaker-go/pkg/audio"
	"github.com/Sendspin/speaker-go/pkg/audio/output"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// taggedFrame returns a two-sample-frame PCM frame carrying seq in its first four bytes
func taggedFrame(seq uint32) audio.Frame {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data, seq)
	return audio.Frame{Data: data}
}

func TestEngineSubmitBeforeStartRejected(t *testing.T) {
	e := NewEngine(Config{Device: newFakeDevice()})

	if e.SubmitFrame(taggedFrame(1)) {
		t.Error("expected frame to be rejected while stopped")
	}
	stats := e.Stats()
	if stats.Rejected != 1 || stats.Buffered != 0 {
		t.Errorf("expected 1 rejected and nothing buffered, got %+v", stats)
	}
}

func TestEngineRejectsInvalidFrames(t *testing.T) {
	dev := newFakeDevice()
	e := NewEngine(Config{Device: dev})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	invalid := []audio.Frame{
		{},
		{Data: []byte{}},
		{Data: []byte{1, 2, 3}},
		{Data: []byte{1, 2, 3, 4, 5, 6}},
	}
	for _, f := range invalid {
		if e.SubmitFrame(f) {
			t.Errorf("expected %d-byte frame to be rejected", len(f.Data))
		}
	}

	if got := e.Stats().Rejected; got != int64(len(invalid)) {
		t.Errorf("expected %d rejected, got %d", len(invalid), got)
	}
}

func TestEngineDropsBeyondCapacityWithoutBlocking(t *testing.T) {
	dev := newFakeDevice()
	dev.gate = make(chan struct{})
	e := NewEngine(Config{Device: dev, BufferFrames: 10, JoinTimeout: 50 * time.Millisecond})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := e.done

	// Park the renderer inside Write with one frame in flight
	e.SubmitFrame(taggedFrame(0))
	select {
	case <-dev.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("renderer never reached the output")
	}

	submitted := make(chan int, 1)
	go func() {
		accepted := 0
		for i := 1; i <= 25; i++ {
			if e.SubmitFrame(taggedFrame(uint32(i))) {
				accepted++
			}
		}
		submitted <- accepted
	}()

	select {
	case accepted := <-submitted:
		if accepted != 10 {
			t.Errorf("expected 10 accepted, got %d", accepted)
		}
	case <-time.After(time.Second):
		t.Fatal("SubmitFrame blocked on a full buffer")
	}

	stats := e.Stats()
	if stats.Buffered != 10 {
		t.Errorf("expected 10 buffered, got %d", stats.Buffered)
	}
	if stats.Dropped != 15 {
		t.Errorf("expected 15 dropped, got %d", stats.Dropped)
	}

	e.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("render loop leaked after Stop")
	}
	if e.Stats().Buffered != 0 {
		t.Errorf("expected buffer cleared after Stop, got %d", e.Stats().Buffered)
	}
	if dev.openStreams() != 0 {
		t.Errorf("expected output released, %d streams open", dev.openStreams())
	}
}

func TestEngineRendersInSubmissionOrder(t *testing.T) {
	const n = 200
	dev := newFakeDevice()
	e := NewEngine(Config{Device: dev, BufferFrames: n})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	for i := 0; i < n; i++ {
		if !e.SubmitFrame(taggedFrame(uint32(i))) {
			t.Fatalf("frame %d not accepted", i)
		}
	}

	waitFor(t, "all frames rendered", func() bool { return e.Stats().Rendered == n })

	for i, w := range dev.writes() {
		if seq := binary.LittleEndian.Uint32(w); seq != uint32(i) {
			t.Fatalf("write %d: expected seq %d, got %d", i, i, seq)
		}
	}
}

func TestEngineStartStopCycles(t *testing.T) {
	const cycles = 20
	dev := newFakeDevice()
	e := NewEngine(Config{Device: dev})

	for i := 0; i < cycles; i++ {
		if err := e.Start(); err != nil {
			t.Fatalf("cycle %d: Start: %v", i, err)
		}
		if err := e.Start(); err != nil {
			t.Fatalf("cycle %d: second Start: %v", i, err)
		}
		done := e.done

		e.SubmitFrame(taggedFrame(uint32(i)))

		e.Stop()
		e.Stop()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("cycle %d: render loop still running", i)
		}
		if e.Running() {
			t.Fatalf("cycle %d: engine still running", i)
		}
	}

	if dev.openStreams() != 0 {
		t.Errorf("expected all streams released, %d open", dev.openStreams())
	}
	if len(dev.modes) != cycles {
		t.Errorf("expected %d opens, got %d", cycles, len(dev.modes))
	}
}

func TestEngineAbandonedRenderLoopLeavesNewFrames(t *testing.T) {
	dev := newFakeDevice()
	dev.gate = make(chan struct{})
	dev.ignoreClose = true
	e := NewEngine(Config{Device: dev, JoinTimeout: 20 * time.Millisecond})

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	abandoned := e.done
	e.SubmitFrame(taggedFrame(0))
	<-dev.entered

	// The join times out with the first loop stuck in Write
	e.Stop()

	if err := e.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer e.Stop()

	e.SubmitFrame(taggedFrame(1))
	<-dev.entered
	for i := uint32(2); i < 10; i++ {
		if !e.SubmitFrame(taggedFrame(i)) {
			t.Fatalf("frame %d not accepted", i)
		}
	}

	close(dev.gate)

	select {
	case <-abandoned:
	case <-time.After(time.Second):
		t.Fatal("abandoned render loop did not exit")
	}
	waitFor(t, "restarted frames rendered", func() bool { return dev.writesBy(2) == 9 })

	if n := dev.writesBy(1); n != 1 {
		t.Errorf("expected the abandoned stream to finish only its own frame, got %d writes", n)
	}
}

func TestEngineFallsBackToStandardOutput(t *testing.T) {
	dev := newFakeDevice()
	dev.failLowLatency = true
	e := NewEngine(Config{Device: dev})

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if len(dev.modes) != 2 || dev.modes[0] != output.LowLatency || dev.modes[1] != output.Standard {
		t.Errorf("expected low-latency then standard, got %v", dev.modes)
	}
}

func TestEngineStartFailsWithoutOutput(t *testing.T) {
	dev := newFakeDevice()
	dev.failAll = true
	e := NewEngine(Config{Device: dev})

	if err := e.Start(); err == nil {
		t.Fatal("expected Start to fail")
	}
	if e.Running() {
		t.Error("engine should not be running")
	}
	if e.SubmitFrame(taggedFrame(1)) {
		t.Error("expected frames to be rejected after failed start")
	}
}

func TestEngineStopInterruptsBlockedTake(t *testing.T) {
	e := NewEngine(Config{Device: newFakeDevice()})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := e.done

	// Let the renderer block on the empty buffer
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	e.Stop()
	if elapsed := time.Since(start); elapsed > DefaultJoinTimeout/2 {
		t.Errorf("Stop took %v, expected prompt cancellation", elapsed)
	}

	select {
	case <-done:
	default:
		t.Error("render loop still running after Stop")
	}
}

func TestEngineWriteErrorsAreNotFatal(t *testing.T) {
	dev := newFakeDevice()
	dev.writeErrs = 2
	e := NewEngine(Config{Device: dev})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	for i := 0; i < 5; i++ {
		e.SubmitFrame(taggedFrame(uint32(i)))
	}

	waitFor(t, "remaining frames rendered", func() bool { return e.Stats().Rendered == 3 })

	if got := e.Stats().WriteErrors; got != 2 {
		t.Errorf("expected 2 write errors, got %d", got)
	}
}

func TestEngineSkipsWritesWhileNotPlaying(t *testing.T) {
	dev := newFakeDevice()
	dev.paused = true
	e := NewEngine(Config{Device: dev})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	for i := 0; i < 3; i++ {
		e.SubmitFrame(taggedFrame(uint32(i)))
	}

	waitFor(t, "buffer drained", func() bool { return e.Stats().Buffered == 0 })
	time.Sleep(10 * time.Millisecond)

	if got := e.Stats().Rendered; got != 0 {
		t.Errorf("expected nothing rendered, got %d", got)
	}
	if len(dev.writes()) != 0 {
		t.Errorf("expected no writes, got %d", len(dev.writes()))
	}
}

func TestEngineAppliesVolume(t *testing.T) {
	dev := newFakeDevice()
	e := NewEngine(Config{Device: dev, Volume: 50})
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	e.SubmitFrame(audio.Frame{Data: pcm(1000, -1000)})
	waitFor(t, "frame rendered", func() bool { return e.Stats().Rendered == 1 })

	w := dev.writes()[0]
	if audio.Int16At(w, 0) != 500 || audio.Int16At(w, 1) != -500 {
		t.Errorf("expected samples scaled to 500/-500, got %d/%d",
			audio.Int16At(w, 0), audio.Int16At(w, 1))
	}

	e.SetVolume(250)
	if e.Volume() != 100 {
		t.Errorf("expected volume clamped to 100, got %d", e.Volume())
	}
	e.SetMuted(true)
	if !e.Muted() {
		t.Error("expected muted")
	}
}

func TestEngineRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	e := NewEngine(Config{Device: newFakeDevice(), Metrics: metrics})
	e.SubmitFrame(taggedFrame(1))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "speaker.frames.rejected" {
				continue
			}
			found = true
			sum := m.Data.(metricdata.Sum[int64])
			if sum.DataPoints[0].Value != 1 {
				t.Errorf("expected 1 rejected frame, got %d", sum.DataPoints[0].Value)
			}
		}
	}
	if !found {
		t.Error("speaker.frames.rejected not recorded")
	}
}
