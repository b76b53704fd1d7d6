// Package pipeline runs one transcription request end to end: ingest the
// media, call the engines, attribute speakers, merge and render.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/asr-api/backend/internal/engine"
	"github.com/asr-api/backend/internal/ffmpeg"
	"github.com/asr-api/backend/internal/media"
	"github.com/asr-api/backend/internal/scratch"
	"github.com/asr-api/backend/internal/transcript"
)

// ErrNoRecognizer is returned when the service has no recognition backend
var ErrNoRecognizer = errors.New("no recognition engine configured")

// Ingestor stores a media source as engine-ready audio in a scope
type Ingestor interface {
	Ingest(ctx context.Context, src media.Source, scope *scratch.Scope) (string, error)
}

// Config wires a Service
type Config struct {
	Scratch    *scratch.Manager
	Ingestor   Ingestor
	Recognizer engine.Recognizer
	Diarizer   engine.Diarizer
	// EngineTimeout bounds the recognition and diarization calls together.
	// Zero means no bound beyond the request context.
	EngineTimeout time.Duration
}

// Outcome is a finished transcription
type Outcome struct {
	Result   transcript.Result
	Segments []transcript.Segment
	// Degraded is set when diarization was requested but failed or was
	// unavailable, so the result carries no speakers
	Degraded bool
	Elapsed  time.Duration
}

// Service is safe for concurrent use; it keeps no per-request state
type Service struct {
	scratch       *scratch.Manager
	ingestor      Ingestor
	recognizer    engine.Recognizer
	diarizer      engine.Diarizer
	engineTimeout time.Duration
	tracer        trace.Tracer
	metrics       *instruments
}

func NewService(cfg Config) *Service {
	return &Service{
		scratch:       cfg.Scratch,
		ingestor:      cfg.Ingestor,
		recognizer:    cfg.Recognizer,
		diarizer:      cfg.Diarizer,
		engineTimeout: cfg.EngineTimeout,
		tracer:        otel.Tracer(instrumentationName),
		metrics:       newInstruments(),
	}
}

// Recognizer returns the configured recognition backend, or nil
func (s *Service) Recognizer() engine.Recognizer {
	return s.recognizer
}

// Diarizer returns the configured diarization backend, or nil
func (s *Service) Diarizer() engine.Diarizer {
	return s.diarizer
}

// Transcribe runs the whole pipeline for src. Every temporary file is
// removed before it returns, whatever the outcome.
func (s *Service) Transcribe(ctx context.Context, src media.Source, opts Options) (*Outcome, error) {
	if s.recognizer == nil {
		return nil, ErrNoRecognizer
	}
	opts = opts.normalized()
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "pipeline.Transcribe", trace.WithAttributes(
		attribute.String("asr.language", opts.Language),
		attribute.String("asr.format", string(opts.Format)),
		attribute.Bool("asr.diarization", opts.Diarization),
		attribute.Int("asr.hotwords", len(opts.Hotwords)),
	))
	defer span.End()

	out, err := s.run(ctx, src, opts)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.record(ctx, outcomeLabel(err), elapsed.Seconds())
		return nil, err
	}

	out.Elapsed = elapsed
	s.metrics.record(ctx, "ok", elapsed.Seconds())
	if out.Degraded && s.metrics.degraded != nil {
		s.metrics.degraded.Add(ctx, 1)
	}
	span.SetAttributes(
		attribute.Float64("asr.audio_duration", out.Result.Duration),
		attribute.Int("asr.segments", len(out.Segments)),
	)
	return out, nil
}

func (s *Service) run(ctx context.Context, src media.Source, opts Options) (*Outcome, error) {
	scope, err := s.scratch.Open()
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	audioPath, err := s.ingestor.Ingest(ctx, src, scope)
	if err != nil {
		return nil, err
	}

	engineStart := time.Now()
	spans, intervals, degraded, err := s.runEngines(ctx, audioPath, opts)
	if err != nil {
		return nil, err
	}
	engineElapsed := time.Since(engineStart)

	duration, err := ffmpeg.AudioDuration(audioPath)
	if err != nil {
		log.Printf("[pipeline] could not read audio duration, using last span end: %v", err)
		duration = lastEnd(spans)
	}
	s.logRTF(ctx, engineElapsed, duration, len(spans))

	segs := transcript.Align(sanitize(spans), intervals)
	segs = transcript.Merge(segs, opts.MergeThreshold)

	res := transcript.Format(segs, transcript.FormatOptions{
		Format:      opts.Format,
		Diarization: opts.Diarization,
		Names:       opts.SpeakerNames,
	})
	res.Duration = duration

	return &Outcome{Result: res, Segments: segs, Degraded: degraded}, nil
}

type diarization struct {
	intervals []transcript.Interval
	err       error
}

// runEngines calls recognition and, when requested, diarization in
// parallel. A diarization failure is logged and reported as degraded; a
// recognition failure fails the request.
func (s *Service) runEngines(ctx context.Context, audioPath string, opts Options) ([]transcript.Span, []transcript.Interval, bool, error) {
	if s.engineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.engineTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var diarCh chan diarization
	degraded := false
	switch {
	case !opts.Diarization:
	case s.diarizer == nil:
		log.Printf("[pipeline] WARNING: diarization requested but no diarizer is configured")
		degraded = true
	default:
		diarCh = make(chan diarization, 1)
		go func() {
			dctx, span := s.tracer.Start(ctx, "engine.Diarize",
				trace.WithAttributes(attribute.String("engine", s.diarizer.Name())))
			defer span.End()
			iv, err := s.diarizer.Diarize(dctx, audioPath)
			if err != nil {
				span.RecordError(err)
			}
			diarCh <- diarization{intervals: iv, err: err}
		}()
	}

	rctx, span := s.tracer.Start(ctx, "engine.Transcribe",
		trace.WithAttributes(attribute.String("engine", s.recognizer.Name())))
	spans, err := s.recognizer.Transcribe(rctx, audioPath, opts.Language, opts.Hotwords)
	if err != nil {
		span.RecordError(err)
	}
	span.End()

	if err != nil {
		cancel()
		if diarCh != nil {
			<-diarCh
		}
		return nil, nil, false, fmt.Errorf("recognize: %w", err)
	}

	var intervals []transcript.Interval
	if diarCh != nil {
		d := <-diarCh
		switch {
		case d.err != nil:
			log.Printf("[pipeline] WARNING: diarization failed, returning transcript without speakers: %v", d.err)
			degraded = true
		case len(d.intervals) == 0:
			log.Printf("[pipeline] diarization returned no speaker turns")
		default:
			intervals = d.intervals
		}
	}
	return spans, intervals, degraded, nil
}

func (s *Service) logRTF(ctx context.Context, elapsed time.Duration, audio float64, spans int) {
	rtf := 0.0
	if audio > 0 {
		rtf = elapsed.Seconds() / audio
	}
	log.Printf("[pipeline] engines done: elapsed=%.3fs audio=%.3fs rtf=%.3f spans=%d",
		elapsed.Seconds(), audio, rtf, spans)
	if s.metrics.audioSeconds != nil {
		s.metrics.audioSeconds.Add(ctx, audio)
	}
	if audio > 0 && s.metrics.rtf != nil {
		s.metrics.rtf.Record(ctx, rtf)
	}
}

// sanitize strips NUL bytes some engines emit and trims surrounding space
func sanitize(spans []transcript.Span) []transcript.Span {
	out := make([]transcript.Span, len(spans))
	for i, sp := range spans {
		sp.Text = strings.TrimSpace(strings.ReplaceAll(sp.Text, "\x00", ""))
		out[i] = sp
	}
	return out
}

func lastEnd(spans []transcript.Span) float64 {
	end := 0.0
	for _, sp := range spans {
		if sp.End > end {
			end = sp.End
		}
	}
	return end
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, media.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, media.ErrTooLarge):
		return "too_large"
	case errors.Is(err, media.ErrDownload):
		return "download_error"
	case errors.Is(err, media.ErrMediaDecode):
		return "decode_error"
	case errors.Is(err, engine.ErrEngine):
		return "engine_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "internal_error"
}
