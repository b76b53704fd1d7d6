package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/asr-api/backend/internal/engine"
	"github.com/asr-api/backend/internal/ffmpeg"
	"github.com/asr-api/backend/internal/media"
	"github.com/asr-api/backend/internal/scratch"
	"github.com/asr-api/backend/internal/transcript"
)

// fakeIngestor writes a silent 16 kHz WAV of the given length into the scope
type fakeIngestor struct {
	seconds float64
	err     error
}

func (f *fakeIngestor) Ingest(_ context.Context, _ media.Source, scope *scratch.Scope) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	file, err := scope.CreateTemp("audio-*.wav")
	if err != nil {
		return "", err
	}
	defer file.Close()
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:   make([]int, int(f.seconds*16000)),
	}
	enc := wav.NewEncoder(file, 16000, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return "", err
	}
	return file.Name(), enc.Close()
}

type fakeRecognizer struct {
	spans []transcript.Span
	err   error
	wait  <-chan struct{}
	got   engine.Hotwords
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Transcribe(ctx context.Context, _ string, _ string, hotwords engine.Hotwords) ([]transcript.Span, error) {
	f.got = hotwords
	if f.wait != nil {
		select {
		case <-f.wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return nil, errors.New("diarizer never started")
		}
	}
	return f.spans, f.err
}

type fakeDiarizer struct {
	intervals []transcript.Interval
	err       error
	started   chan struct{}
	block     bool
	canceled  atomic.Bool
}

func (f *fakeDiarizer) Name() string { return "fake" }

func (f *fakeDiarizer) Diarize(ctx context.Context, _ string) ([]transcript.Interval, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		f.canceled.Store(true)
		return nil, ctx.Err()
	}
	return f.intervals, f.err
}

func newService(t *testing.T, ing Ingestor, rec engine.Recognizer, dia engine.Diarizer) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	m, err := scratch.NewManager(root)
	if err != nil {
		t.Fatal(err)
	}
	return NewService(Config{
		Scratch:       m,
		Ingestor:      ing,
		Recognizer:    rec,
		Diarizer:      dia,
		EngineTimeout: time.Minute,
	}), root
}

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch root not empty: %v", entries)
	}
}

func upload() media.Source {
	return media.Upload{Filename: "meeting.mp4", Content: strings.NewReader("x")}
}

func TestTranscribeWithDiarization(t *testing.T) {
	rec := &fakeRecognizer{spans: []transcript.Span{
		{Text: "hello", Start: 0, End: 1},
		{Text: "world", Start: 1.5, End: 2},
		{Text: "hi\x00 bob", Start: 3, End: 4},
	}}
	dia := &fakeDiarizer{intervals: []transcript.Interval{
		{Speaker: "spk0", Start: 0, End: 2.5},
		{Speaker: "spk1", Start: 2.5, End: 5},
	}}
	svc, root := newService(t, &fakeIngestor{seconds: 5}, rec, dia)

	opts := DefaultOptions()
	opts.Format = transcript.FormatBoth
	opts.Diarization = true
	opts.SpeakerNames = transcript.SpeakerNames{"spk1": "Bob"}
	opts.Hotwords = engine.Hotwords{"bob": 10}

	out, err := svc.Transcribe(context.Background(), upload(), opts)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if out.Degraded {
		t.Fatal("unexpected degraded result")
	}
	if *out.Result.Text != "[spk0] hello world\n[Bob] hi bob" {
		t.Fatalf("text = %q", *out.Result.Text)
	}
	wantSRT := "1  [spk0]\n00:00:00,000 --> 00:00:02,000\nhello world\n\n" +
		"2  [Bob]\n00:00:03,000 --> 00:00:04,000\nhi bob\n\n"
	if *out.Result.SRT != wantSRT {
		t.Fatalf("srt = %q, want %q", *out.Result.SRT, wantSRT)
	}
	if !reflect.DeepEqual(out.Result.Speakers, []string{"spk0", "spk1"}) {
		t.Fatalf("speakers = %v", out.Result.Speakers)
	}
	if out.Result.Duration != 5 {
		t.Fatalf("duration = %v, want 5", out.Result.Duration)
	}
	if rec.got["bob"] != 10 {
		t.Fatalf("hotwords not passed to recognizer: %v", rec.got)
	}
	assertEmpty(t, root)
}

func TestDiarizationFailureDegrades(t *testing.T) {
	rec := &fakeRecognizer{spans: []transcript.Span{{Text: "only text", Start: 0, End: 1}}}
	dia := &fakeDiarizer{err: errors.New("diarizer crashed")}
	svc, root := newService(t, &fakeIngestor{seconds: 1}, rec, dia)

	opts := DefaultOptions()
	opts.Diarization = true
	opts.Format = transcript.FormatSRT

	out, err := svc.Transcribe(context.Background(), upload(), opts)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if !out.Degraded || len(out.Result.Speakers) != 0 {
		t.Fatalf("outcome = %+v, want degraded without speakers", out)
	}
	if strings.Contains(*out.Result.SRT, "[") {
		t.Fatalf("srt has speaker label: %q", *out.Result.SRT)
	}
	assertEmpty(t, root)
}

func TestMissingDiarizerDegrades(t *testing.T) {
	rec := &fakeRecognizer{spans: []transcript.Span{{Text: "a", Start: 0, End: 1}}}
	svc, _ := newService(t, &fakeIngestor{seconds: 1}, rec, nil)

	opts := DefaultOptions()
	opts.Diarization = true
	out, err := svc.Transcribe(context.Background(), upload(), opts)
	if err != nil || !out.Degraded {
		t.Fatalf("Transcribe() = %+v, %v, want degraded", out, err)
	}
}

func TestRecognitionFailureCancelsDiarizationAndCleansUp(t *testing.T) {
	rec := &fakeRecognizer{err: engine.ErrEngine}
	dia := &fakeDiarizer{block: true}
	svc, root := newService(t, &fakeIngestor{seconds: 1}, rec, dia)

	opts := DefaultOptions()
	opts.Diarization = true
	_, err := svc.Transcribe(context.Background(), upload(), opts)
	if !errors.Is(err, engine.ErrEngine) {
		t.Fatalf("Transcribe() error = %v, want ErrEngine", err)
	}
	if !dia.canceled.Load() {
		t.Fatal("diarizer was not canceled")
	}
	assertEmpty(t, root)
}

func TestEnginesRunConcurrently(t *testing.T) {
	started := make(chan struct{})
	rec := &fakeRecognizer{wait: started, spans: []transcript.Span{{Text: "a", Start: 0, End: 1}}}
	dia := &fakeDiarizer{started: started, intervals: []transcript.Interval{{Speaker: "spk0", Start: 0, End: 1}}}
	svc, _ := newService(t, &fakeIngestor{seconds: 1}, rec, dia)

	opts := DefaultOptions()
	opts.Diarization = true
	out, err := svc.Transcribe(context.Background(), upload(), opts)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if out.Segments[0].Speaker != "spk0" {
		t.Fatalf("segments = %+v", out.Segments)
	}
}

func TestIngestErrorPropagatesAndCleansUp(t *testing.T) {
	ing := &fakeIngestor{err: &media.FormatError{Ext: ".txt"}}
	svc, root := newService(t, ing, &fakeRecognizer{}, nil)

	_, err := svc.Transcribe(context.Background(), upload(), DefaultOptions())
	if !errors.Is(err, media.ErrUnsupportedFormat) {
		t.Fatalf("Transcribe() error = %v, want ErrUnsupportedFormat", err)
	}
	assertEmpty(t, root)
}

// unusedExtractor fails the test if the ingestor ever reaches probing
type unusedExtractor struct{ t *testing.T }

func (u unusedExtractor) Probe(context.Context, string) (*ffmpeg.MediaInfo, error) {
	u.t.Error("Probe called after a failed download")
	return nil, errors.New("unexpected probe")
}

func (u unusedExtractor) ExtractAudio(context.Context, string, string) error {
	u.t.Error("ExtractAudio called after a failed download")
	return errors.New("unexpected extract")
}

func TestRemoteNotFoundLeavesNoFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ing := media.NewIngestor(unusedExtractor{t}, media.Options{DownloadTimeout: 5 * time.Second})
	svc, root := newService(t, ing, &fakeRecognizer{}, nil)

	_, err := svc.Transcribe(context.Background(), media.Remote{URL: srv.URL + "/a.wav"}, DefaultOptions())
	if !errors.Is(err, media.ErrDownload) {
		t.Fatalf("Transcribe() error = %v, want ErrDownload", err)
	}
	assertEmpty(t, root)
}

func TestNoRecognizer(t *testing.T) {
	svc, _ := newService(t, &fakeIngestor{}, nil, nil)
	if _, err := svc.Transcribe(context.Background(), upload(), DefaultOptions()); !errors.Is(err, ErrNoRecognizer) {
		t.Fatalf("Transcribe() error = %v, want ErrNoRecognizer", err)
	}
}

func TestWithoutDiarizationMergesUnattributedSpans(t *testing.T) {
	rec := &fakeRecognizer{spans: []transcript.Span{
		{Text: "one", Start: 0, End: 1},
		{Text: "two", Start: 1.5, End: 2},
		{Text: "three", Start: 20, End: 21},
	}}
	svc, _ := newService(t, &fakeIngestor{seconds: 21}, rec, &fakeDiarizer{})

	out, err := svc.Transcribe(context.Background(), upload(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if *out.Result.Text != "one two\nthree" {
		t.Fatalf("text = %q", *out.Result.Text)
	}
	if out.Result.Speakers == nil || len(out.Result.Speakers) != 0 {
		t.Fatalf("speakers = %#v, want empty list", out.Result.Speakers)
	}
}

func TestOptionsAreDetached(t *testing.T) {
	names := transcript.SpeakerNames{"spk0": "A"}
	opts := Options{SpeakerNames: names}.normalized()
	names["spk0"] = "changed"

	if opts.SpeakerNames["spk0"] != "A" {
		t.Fatal("normalized options share the caller's map")
	}
	if opts.Language != DefaultLanguage || opts.Format != transcript.FormatText {
		t.Fatalf("defaults not applied: %+v", opts)
	}
}

func TestEngineTimeoutFailsRequest(t *testing.T) {
	rec := &fakeRecognizer{wait: make(chan struct{})}
	svc, root := newService(t, &fakeIngestor{seconds: 1}, rec, nil)
	svc.engineTimeout = 50 * time.Millisecond

	_, err := svc.Transcribe(context.Background(), upload(), DefaultOptions())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Transcribe() error = %v, want deadline exceeded", err)
	}
	if outcomeLabel(err) != "timeout" {
		t.Fatalf("outcomeLabel = %q", outcomeLabel(err))
	}
	assertEmpty(t, root)
}
