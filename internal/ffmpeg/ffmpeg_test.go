package ffmpeg

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// fakeRunner delegates to an injected function
type fakeRunner struct {
	calls int
	run   func(name string, args ...string) (CommandResult, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	f.calls++
	if f.run == nil {
		return CommandResult{}, nil
	}
	return f.run(name, args...)
}

func writeWAV(t *testing.T, path string, samples int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:   make([]int, samples),
	}
	enc := wav.NewEncoder(f, SampleRate, 16, Channels, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"filename": "in.mp4", "format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.500000"}
}`

func TestProbeSummarizesStreams(t *testing.T) {
	runner := &fakeRunner{run: func(name string, args ...string) (CommandResult, error) {
		if name != "ffprobe-custom" {
			t.Fatalf("name = %q", name)
		}
		if args[len(args)-1] != "/tmp/in.mp4" {
			t.Fatalf("probe target = %q", args[len(args)-1])
		}
		return CommandResult{Stdout: probeJSON}, nil
	}}

	tool := NewWithRunner("", "ffprobe-custom", runner)
	info, err := tool.Probe(context.Background(), "/tmp/in.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !info.HasAudio() || info.AudioCodec != "aac" || info.AudioStream != 1 {
		t.Fatalf("audio = %+v", info)
	}
	if info.VideoCodec != "h264" || info.Duration != 12.5 || info.SampleRate != 48000 {
		t.Fatalf("info = %+v", info)
	}
}

func TestProbeWithoutAudio(t *testing.T) {
	runner := &fakeRunner{run: func(string, ...string) (CommandResult, error) {
		return CommandResult{Stdout: `{"streams":[{"index":0,"codec_type":"video","codec_name":"vp9"}],"format":{}}`}, nil
	}}

	info, err := NewWithRunner("", "", runner).Probe(context.Background(), "x.webm")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.HasAudio() || info.AudioStream != -1 {
		t.Fatalf("HasAudio() = true for %+v", info)
	}
}

func TestProbeFailureCarriesStderr(t *testing.T) {
	runner := &fakeRunner{run: func(string, ...string) (CommandResult, error) {
		return CommandResult{Stderr: "moov atom not found", ExitCode: 1}, errors.New("exit status 1")
	}}

	_, err := NewWithRunner("", "", runner).Probe(context.Background(), "broken.mp4")
	if err == nil || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("Probe() error = %v, want stderr in message", err)
	}
}

func TestExtractAudioArguments(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.wav")
	var got []string
	runner := &fakeRunner{run: func(name string, args ...string) (CommandResult, error) {
		got = args
		writeWAV(t, args[len(args)-1], 160)
		return CommandResult{}, nil
	}}

	if err := NewWithRunner("", "", runner).ExtractAudio(context.Background(), "in.mkv", out); err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}
	joined := strings.Join(got, " ")
	for _, want := range []string{"-i in.mkv", "-vn", "-acodec pcm_s16le", "-ar 16000", "-ac 1"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if got[len(got)-1] != out {
		t.Fatalf("output = %q, want %q", got[len(got)-1], out)
	}
}

func TestExtractAudioEmptyOutputFails(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.wav")
	runner := &fakeRunner{}

	if err := NewWithRunner("", "", runner).ExtractAudio(context.Background(), "in.mp3", out); err == nil {
		t.Fatal("ExtractAudio() succeeded without producing output")
	}
}

func TestAudioDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	writeWAV(t, path, SampleRate*3/2)

	got, err := AudioDuration(path)
	if err != nil {
		t.Fatalf("AudioDuration() error = %v", err)
	}
	if math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("AudioDuration() = %v, want 1.5", got)
	}
}

func TestAudioDurationRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	os.WriteFile(path, []byte("not a wav file at all, definitely not"), 0644)

	if _, err := AudioDuration(path); err == nil {
		t.Fatal("AudioDuration() accepted garbage")
	}
}

func TestDetectCachesResult(t *testing.T) {
	runner := &fakeRunner{run: func(name string, args ...string) (CommandResult, error) {
		return CommandResult{Stdout: name + " version 6.1\nbuilt with gcc"}, nil
	}}
	tool := NewWithRunner("", "", runner)

	first := tool.Detect()
	second := tool.Detect()
	if !first.Ready() || first.FFmpeg != "ffmpeg version 6.1" {
		t.Fatalf("Detect() = %+v", first)
	}
	if first != second || runner.calls != 2 {
		t.Fatalf("runner called %d times, want 2", runner.calls)
	}
}
