package pipeline

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/asr-api/backend/internal/pipeline"

type instruments struct {
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	audioSeconds metric.Float64Counter
	rtf          metric.Float64Histogram
	degraded     metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)
	in := &instruments{}
	var err error
	if in.requests, err = meter.Int64Counter("asr.transcriptions",
		metric.WithDescription("Transcription requests by outcome")); err != nil {
		log.Printf("[pipeline] metric asr.transcriptions: %v", err)
	}
	if in.duration, err = meter.Float64Histogram("asr.transcription.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of a transcription request")); err != nil {
		log.Printf("[pipeline] metric asr.transcription.duration: %v", err)
	}
	if in.audioSeconds, err = meter.Float64Counter("asr.audio.seconds",
		metric.WithUnit("s"),
		metric.WithDescription("Seconds of audio transcribed")); err != nil {
		log.Printf("[pipeline] metric asr.audio.seconds: %v", err)
	}
	if in.rtf, err = meter.Float64Histogram("asr.engine.rtf",
		metric.WithDescription("Engine time divided by audio duration")); err != nil {
		log.Printf("[pipeline] metric asr.engine.rtf: %v", err)
	}
	if in.degraded, err = meter.Int64Counter("asr.diarization.degraded",
		metric.WithDescription("Requests that fell back to output without speakers")); err != nil {
		log.Printf("[pipeline] metric asr.diarization.degraded: %v", err)
	}
	return in
}

func (in *instruments) record(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if in.requests != nil {
		in.requests.Add(ctx, 1, attrs)
	}
	if in.duration != nil {
		in.duration.Record(ctx, seconds, attrs)
	}
}
