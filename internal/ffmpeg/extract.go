// Package ffmpeg wraps the ffmpeg and ffprobe binaries used to turn
// uploaded media into engine-ready audio.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-audio/wav"
)

// Engines expect 16 kHz mono signed 16-bit PCM
const (
	SampleRate = 16000
	Channels   = 1
)

// Tool invokes ffmpeg and ffprobe through a Runner
type Tool struct {
	ffmpeg  string
	ffprobe string
	runner  Runner

	detectOnce sync.Once
	caps       Capabilities
}

// New returns a Tool for the given binaries; empty names fall back to PATH lookups
func New(ffmpegPath, ffprobePath string) *Tool {
	return NewWithRunner(ffmpegPath, ffprobePath, ExecRunner{})
}

// NewWithRunner is New with an explicit command runner
func NewWithRunner(ffmpegPath, ffprobePath string, runner Runner) *Tool {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Tool{ffmpeg: ffmpegPath, ffprobe: ffprobePath, runner: runner}
}

// ExtractAudio decodes the first audio stream of input into a 16 kHz mono
// pcm_s16le WAV at output. output is overwritten.
func (t *Tool) ExtractAudio(ctx context.Context, input, output string) error {
	res, err := t.runner.Run(ctx, t.ffmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn", // no video
		"-map", "0:a:0",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-y",
		output,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg: %s: %w", strings.TrimSpace(res.Stderr), err)
	}
	if st, err := os.Stat(output); err != nil || st.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no audio at %s", output)
	}
	return nil
}

// AudioDuration reads the PCM length of a WAV file and returns its
// duration in seconds
func AudioDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s is not a valid wav file", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("locate pcm chunk: %w", err)
	}

	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth/8)
	if bytesPerSec == 0 {
		return 0, fmt.Errorf("%s has an empty format header", path)
	}
	return float64(dec.PCMLen()) / float64(bytesPerSec), nil
}
