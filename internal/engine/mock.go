package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/asr-api/backend/internal/ffmpeg"
	"github.com/asr-api/backend/internal/transcript"
)

// mockFallbackDuration is used when the audio cannot be read as WAV
const mockFallbackDuration = 10.0

func mockDuration(audioPath string) float64 {
	d, err := ffmpeg.AudioDuration(audioPath)
	if err != nil || d <= 0 {
		return mockFallbackDuration
	}
	return d
}

// windows splits [0, total) into consecutive windows of size step
func windows(total, step float64) [][2]float64 {
	if step <= 0 {
		step = total
	}
	var out [][2]float64
	for start := 0.0; start < total; start += step {
		out = append(out, [2]float64{start, math.Min(start+step, total)})
	}
	return out
}

// MockRecognizer emits one span per Window seconds of audio. Used for local
// development and tests.
type MockRecognizer struct {
	Window float64
}

func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{Window: 3}
}

func (m *MockRecognizer) Name() string {
	return "mock"
}

func (m *MockRecognizer) Transcribe(ctx context.Context, audioPath, language string, hotwords Hotwords) ([]transcript.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var spans []transcript.Span
	for i, w := range windows(mockDuration(audioPath), m.Window) {
		text := fmt.Sprintf("[%s] mock segment %d", language, i+1)
		if i == 0 && len(hotwords) > 0 {
			text += " " + strings.Join(hotwords.Phrases(), " ")
		}
		spans = append(spans, transcript.Span{Text: text, Start: w[0], End: w[1]})
	}
	return spans, nil
}

// MockDiarizer alternates between Speakers every Turn seconds
type MockDiarizer struct {
	Turn     float64
	Speakers int
}

func NewMockDiarizer() *MockDiarizer {
	return &MockDiarizer{Turn: 6, Speakers: 2}
}

func (m *MockDiarizer) Name() string {
	return "mock"
}

func (m *MockDiarizer) Diarize(ctx context.Context, audioPath string) ([]transcript.Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	speakers := m.Speakers
	if speakers <= 0 {
		speakers = 1
	}
	var out []transcript.Interval
	for i, w := range windows(mockDuration(audioPath), m.Turn) {
		out = append(out, transcript.Interval{
			Speaker: fmt.Sprintf("spk%d", i%speakers),
			Start:   w[0],
			End:     w[1],
		})
	}
	return out, nil
}
