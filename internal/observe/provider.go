// ABOUTME: Speaker metrics pipeline: OTel SDK provider exported to a private Prometheus registry
// ABOUTME: The registry also carries Go runtime and process collectors and backs GET /metrics
package observe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sendspin/speaker-go/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// serviceName labels every exported series
const serviceName = "speaker"

// Provider owns the speaker's meter provider, its instruments and the
// registry /metrics is served from
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry
	metrics       *Metrics
}

// NewProvider builds the metrics pipeline for the speaker named deviceName and
// installs it as the global meter provider
func NewProvider(deviceName string) (*Provider, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exp, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	// Schemaless so the merge adopts the SDK default's schema URL
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version.Version),
			attribute.String("speaker.device_name", deviceName),
			attribute.String("speaker.model", version.Product),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)

	metrics, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, err
	}
	otel.SetMeterProvider(mp)

	return &Provider{meterProvider: mp, registry: registry, metrics: metrics}, nil
}

// Metrics returns the speaker's instruments
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Handler serves the registry in the Prometheus text format
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.meterProvider.Shutdown(ctx)
}
