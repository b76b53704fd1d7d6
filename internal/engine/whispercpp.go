package engine

import (
	"context"
	"strings"
	"time"

	"github.com/asr-api/backend/internal/transcript"
)

// WhisperCppRecognizer talks to the whisper.cpp HTTP server (whisper-server).
// Hotword phrases are passed as the initial prompt since whisper has no
// weighted biasing.
type WhisperCppRecognizer struct {
	client *inferenceClient
}

func NewWhisperCppRecognizer(baseURL string, timeout time.Duration) *WhisperCppRecognizer {
	return &WhisperCppRecognizer{client: newInferenceClient(baseURL, timeout)}
}

func (w *WhisperCppRecognizer) Name() string {
	return "whisper.cpp"
}

func (w *WhisperCppRecognizer) Transcribe(ctx context.Context, audioPath, language string, hotwords Hotwords) ([]transcript.Span, error) {
	fields := map[string]string{
		"response_format": "vtt",
		"temperature":     "0.0",
	}
	if language != "" && language != "auto" {
		fields["language"] = language
	}
	if len(hotwords) > 0 {
		fields["prompt"] = strings.Join(hotwords.Phrases(), ", ")
	}

	body, err := w.client.post(ctx, "/inference", audioPath, fields)
	if err != nil {
		return nil, failure(ctx, w.Name(), err)
	}
	return transcript.ParseCues(string(body)), nil
}
