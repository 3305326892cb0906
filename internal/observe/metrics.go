// ABOUTME: OpenTelemetry instruments for playback and session lifecycle
// ABOUTME: Counters are created once against a MeterProvider
// Package observe provides the speaker's OpenTelemetry metrics.
//
// Instruments are created against a [metric.MeterProvider]; [NewProvider]
// builds the speaker's SDK provider backed by the Prometheus exporter so the
// control API can serve /metrics. Tests should build their own provider with
// a ManualReader and pass it to [NewMetrics].
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all speaker metrics.
const meterName = "github.com/Sendspin/speaker-go"

// Metrics holds the metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// FramesSubmitted counts frames accepted into the jitter buffer.
	FramesSubmitted metric.Int64Counter

	// FramesRendered counts frames written to the output stream.
	FramesRendered metric.Int64Counter

	// FramesDropped counts frames dropped because the jitter buffer was full.
	FramesDropped metric.Int64Counter

	// FramesRejected counts invalid frames or frames submitted while stopped.
	FramesRejected metric.Int64Counter

	// WriteErrors counts failed output stream writes.
	WriteErrors metric.Int64Counter

	// SessionsStarted counts sessions that reached Running.
	SessionsStarted metric.Int64Counter

	// SessionsFailed counts sessions torn down by a failure. Use with
	//   attribute.String("stage", ...)
	SessionsFailed metric.Int64Counter

	// ActiveSessions is 1 while a session is Running.
	ActiveSessions metric.Int64UpDownCounter
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesSubmitted, err = m.Int64Counter("speaker.frames.submitted",
		metric.WithDescription("Frames accepted into the jitter buffer."),
	); err != nil {
		return nil, err
	}
	if met.FramesRendered, err = m.Int64Counter("speaker.frames.rendered",
		metric.WithDescription("Frames written to the audio output."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("speaker.frames.dropped",
		metric.WithDescription("Frames dropped because the jitter buffer was full."),
	); err != nil {
		return nil, err
	}
	if met.FramesRejected, err = m.Int64Counter("speaker.frames.rejected",
		metric.WithDescription("Invalid frames or frames submitted while playback was stopped."),
	); err != nil {
		return nil, err
	}
	if met.WriteErrors, err = m.Int64Counter("speaker.output.write_errors",
		metric.WithDescription("Failed writes to the audio output stream."),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("speaker.sessions.started",
		metric.WithDescription("Sessions that reached the running state."),
	); err != nil {
		return nil, err
	}
	if met.SessionsFailed, err = m.Int64Counter("speaker.sessions.failed",
		metric.WithDescription("Sessions torn down because of a failure, by stage."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("speaker.sessions.active",
		metric.WithDescription("Number of running sessions (0 or 1)."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordSessionFailure records a failed session with the stage it failed in.
func (m *Metrics) RecordSessionFailure(ctx context.Context, stage string) {
	m.SessionsFailed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}
