// Package telemetry wires OpenTelemetry metrics to a Prometheus endpoint.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// MeterName is the instrumentation scope for padtour instruments.
const MeterName = "github.com/padworld/padtour"

// Provider owns the meter provider and the registry it exports to.
type Provider struct {
	mp       *sdkmetric.MeterProvider
	registry *promclient.Registry
}

// Setup creates a meter provider exporting to a private Prometheus registry
// and installs it as the global provider.
func Setup(ctx context.Context, serviceName, version string) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return &Provider{mp: mp, registry: registry}, nil
}

// Meter returns a meter from this provider.
func (p *Provider) Meter() metric.Meter {
	return p.mp.Meter(MeterName)
}

// Handler serves the registry in the Prometheus text format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

// Serve exposes /metrics on addr until ctx is canceled.
func (p *Provider) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Instruments are the counters and histograms recorded by padtour.
type Instruments struct {
	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
	cache    metric.Int64Counter
	activity metric.Int64Counter
	chunks   metric.Int64Counter
}

// NewInstruments registers the padtour instruments on meter. A nil meter
// uses the global provider.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	var (
		in   Instruments
		err  error
		errs []error
	)
	in.requests, err = meter.Int64Counter("genai.requests",
		metric.WithDescription("Generation API requests by operation"))
	errs = append(errs, err)
	in.failures, err = meter.Int64Counter("genai.failures",
		metric.WithDescription("Failed generation API requests by operation"))
	errs = append(errs, err)
	in.latency, err = meter.Float64Histogram("genai.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Generation API request latency"))
	errs = append(errs, err)
	in.cache, err = meter.Int64Counter("narration.cache.lookups",
		metric.WithDescription("Narration cache lookups by result"))
	errs = append(errs, err)
	in.activity, err = meter.Int64Counter("activity.transitions",
		metric.WithDescription("Activity state transitions"))
	errs = append(errs, err)
	in.chunks, err = meter.Int64Counter("live.audio.chunks",
		metric.WithDescription("Live session audio chunks by direction"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &in, nil
}

// RecordRequest records one API call.
func (in *Instruments) RecordRequest(ctx context.Context, op string, d time.Duration, err error) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", op))
	in.requests.Add(ctx, 1, attrs)
	in.latency.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		in.failures.Add(ctx, 1, attrs)
	}
}

// RecordCache records a narration cache lookup. level is empty on a miss.
func (in *Instruments) RecordCache(ctx context.Context, level string) {
	if in == nil {
		return
	}
	result := "miss"
	if level != "" {
		result = "hit"
	}
	in.cache.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
		attribute.String("level", level)))
}

// RecordTransition records an activity entering state.
func (in *Instruments) RecordTransition(ctx context.Context, activity, state string) {
	if in == nil {
		return
	}
	in.activity.Add(ctx, 1, metric.WithAttributes(
		attribute.String("activity", activity),
		attribute.String("state", state)))
}

// RecordChunk records a live audio chunk moving in direction "in" or "out".
func (in *Instruments) RecordChunk(ctx context.Context, direction string) {
	if in == nil {
		return
	}
	in.chunks.Add(ctx, 1, metric.WithAttributes(attribute.String("direction", direction)))
}
