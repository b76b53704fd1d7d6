package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestMetricsExposed(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, Settings{ServiceName: "asr-test", ServiceVersion: "test", Metrics: true})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer tel.Shutdown(ctx)

	counter, err := otel.Meter("telemetry-test").Int64Counter("asr.test.requests")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(ctx, 3)

	_, span := otel.Tracer("telemetry-test").Start(ctx, "op")
	if !span.SpanContext().IsValid() {
		t.Fatal("tracer provider not installed")
	}
	span.End()

	rec := httptest.NewRecorder()
	tel.MetricsHandler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "asr_test_requests_total") {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}

func TestMetricsDisabled(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, Settings{ServiceName: "asr-test"})
	if err != nil {
		t.Fatal(err)
	}
	if tel.MetricsHandler != nil {
		t.Fatal("metrics handler set while metrics are disabled")
	}
	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestStdoutTraces(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, Settings{ServiceName: "asr-test", OTLPEndpoint: StdoutEndpoint})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	_, span := otel.Tracer("telemetry-test").Start(ctx, "op")
	if !span.SpanContext().IsValid() {
		t.Fatal("tracer provider not installed")
	}
	span.End()
	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
