// Package telemetry installs the global OpenTelemetry tracer and meter
// providers and exposes the Prometheus scrape handler.
package telemetry

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// StdoutEndpoint as the OTLP endpoint prints spans to stdout instead
const StdoutEndpoint = "stdout"

type Settings struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	OTLPInsecure   bool
	Metrics        bool
}

type Telemetry struct {
	// MetricsHandler serves the Prometheus exposition; nil when metrics are off
	MetricsHandler http.Handler
	shutdown       []func(context.Context) error
}

func Setup(ctx context.Context, s Settings) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.ServiceName),
			semconv.ServiceVersion(s.ServiceVersion),
			attribute.String("service.component", "transcription"),
		),
	)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{}

	tp, err := initTracer(ctx, s, res)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	t.shutdown = append(t.shutdown, tp.Shutdown)

	if s.Metrics {
		mp, handler, err := initMetrics(res)
		if err != nil {
			return nil, errors.Join(err, tp.Shutdown(ctx))
		}
		otel.SetMeterProvider(mp)
		t.MetricsHandler = handler
		t.shutdown = append(t.shutdown, mp.Shutdown)
	}
	return t, nil
}

func initTracer(ctx context.Context, s Settings, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	endpoint := strings.TrimSpace(s.OTLPEndpoint)
	if endpoint == "" {
		log.Printf("[telemetry] no OTLP endpoint, traces are not exported")
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	}
	if endpoint == StdoutEndpoint {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		log.Printf("[telemetry] printing traces to stdout")
		return sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		), nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if s.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	log.Printf("[telemetry] exporting traces to %s", endpoint)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// initMetrics uses a private registry so repeated setups never collide on
// the default one
func initMetrics(res *resource.Resource) (*sdkmetric.MeterProvider, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// Shutdown flushes and stops every provider Setup installed
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdown) - 1; i >= 0; i-- {
		if err := t.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
