// Package engine talks to the speech recognition and speaker diarization
// backends. Every backend works on a local 16 kHz mono WAV path.
package engine

import (
	"context"
	"errors"

	"github.com/asr-api/backend/internal/transcript"
)

// ErrEngine wraps any failure reported by a recognition or diarization backend
var ErrEngine = errors.New("engine failure")

// Recognizer turns audio into timed text spans
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath, language string, hotwords Hotwords) ([]transcript.Span, error)
	// Name identifies the backend in logs and /models
	Name() string
}

// Diarizer reports who spoke when
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]transcript.Interval, error)
	Name() string
}
