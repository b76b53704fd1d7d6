package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/asr-api/backend/internal/ffmpeg"
	"github.com/asr-api/backend/internal/scratch"
)

// fakeExtractor records calls and writes a stub wav on extraction
type fakeExtractor struct {
	info       *ffmpeg.MediaInfo
	probeErr   error
	extractErr error

	probed    []string
	extracted []string
}

func (f *fakeExtractor) Probe(_ context.Context, path string) (*ffmpeg.MediaInfo, error) {
	f.probed = append(f.probed, path)
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	if f.info != nil {
		return f.info, nil
	}
	return &ffmpeg.MediaInfo{AudioCodec: "aac", SampleRate: 44100, Channels: 2}, nil
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, input, output string) error {
	f.extracted = append(f.extracted, input)
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(output, []byte("RIFF"), 0644)
}

func newScope(t *testing.T) *scratch.Scope {
	t.Helper()
	m, err := scratch.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	scope, err := m.Open()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { scope.Close() })
	return scope
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUploadRejectsUnsupportedExtensionBeforeWriting(t *testing.T) {
	scope := newScope(t)
	tool := &fakeExtractor{}
	ing := NewIngestor(tool, Options{})

	_, err := ing.Ingest(context.Background(), Upload{Filename: "notes.TXT", Content: strings.NewReader("x")}, scope)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Ingest() error = %v, want ErrUnsupportedFormat", err)
	}
	var ferr *FormatError
	if !errors.As(err, &ferr) || ferr.Ext != ".txt" {
		t.Fatalf("FormatError = %+v, want .txt", ferr)
	}
	if names := dirEntries(t, scope.Dir()); len(names) != 0 {
		t.Fatalf("scope has files %v, want none", names)
	}
	if len(tool.probed) != 0 {
		t.Fatal("probe ran for rejected upload")
	}
}

func TestUploadVideoIsExtracted(t *testing.T) {
	scope := newScope(t)
	tool := &fakeExtractor{}
	ing := NewIngestor(tool, Options{MaxUploadBytes: 1 << 20})

	out, err := ing.Ingest(context.Background(), Upload{Filename: "Meeting.MP4", Content: strings.NewReader("video-bytes")}, scope)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if filepath.Dir(out) != scope.Dir() || filepath.Ext(out) != ".wav" {
		t.Fatalf("output = %q, want wav inside scope", out)
	}
	if len(tool.extracted) != 1 || !strings.HasSuffix(tool.extracted[0], ".mp4") {
		t.Fatalf("extracted = %v", tool.extracted)
	}
	if got := scope.Paths(); len(got) != 2 {
		t.Fatalf("registered = %v, want upload and extracted wav", got)
	}

	scope.Close()
	for _, p := range scope.Paths() {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s survived Close", p)
		}
	}
}

func TestEngineReadyWAVSkipsExtraction(t *testing.T) {
	scope := newScope(t)
	tool := &fakeExtractor{info: &ffmpeg.MediaInfo{AudioCodec: "pcm_s16le", SampleRate: 16000, Channels: 1}}
	ing := NewIngestor(tool, Options{})

	out, err := ing.Ingest(context.Background(), Upload{Filename: "a.wav", Content: strings.NewReader("RIFF")}, scope)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(tool.extracted) != 0 {
		t.Fatalf("extracted = %v, want none", tool.extracted)
	}
	if out != tool.probed[0] {
		t.Fatalf("output = %q, want the stored upload %q", out, tool.probed[0])
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		tool *fakeExtractor
	}{
		{"probe fails", &fakeExtractor{probeErr: errors.New("invalid data found")}},
		{"no audio stream", &fakeExtractor{info: &ffmpeg.MediaInfo{VideoCodec: "h264", AudioStream: -1}}},
		{"extraction fails", &fakeExtractor{extractErr: errors.New("exit status 1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := newScope(t)
			_, err := NewIngestor(tt.tool, Options{}).Ingest(context.Background(),
				Upload{Filename: "clip.mkv", Content: strings.NewReader("x")}, scope)
			if !errors.Is(err, ErrMediaDecode) {
				t.Fatalf("Ingest() error = %v, want ErrMediaDecode", err)
			}
		})
	}
}

func TestUploadOverLimit(t *testing.T) {
	scope := newScope(t)
	ing := NewIngestor(&fakeExtractor{}, Options{MaxUploadBytes: 4})

	_, err := ing.Ingest(context.Background(), Upload{Filename: "a.mp3", Content: strings.NewReader("12345")}, scope)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Ingest() error = %v, want ErrTooLarge", err)
	}
}

func TestRemoteDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/talk.flac":
			w.Write([]byte("flac-bytes"))
		case "/stream":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("mp4-bytes"))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html></html>"))
		case "/big.mp3":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		path    string
		wantExt string
		wantErr error
	}{
		{"extension from path", "/talk.flac?sig=abc", ".flac", nil},
		{"extension from content type", "/stream", ".mp4", nil},
		{"unsupported content type", "/page", "", ErrUnsupportedFormat},
		{"not found", "/missing.mp3", "", ErrDownload},
		{"over size limit", "/big.mp3", "", ErrDownload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := newScope(t)
			tool := &fakeExtractor{}
			ing := NewIngestor(tool, Options{MaxDownloadBytes: 32, DownloadTimeout: 5 * time.Second})

			_, err := ing.Ingest(context.Background(), Remote{URL: srv.URL + tt.path}, scope)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Ingest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Ingest() error = %v", err)
			}
			if len(tool.probed) != 1 || filepath.Ext(tool.probed[0]) != tt.wantExt {
				t.Fatalf("probed = %v, want a %s file", tool.probed, tt.wantExt)
			}
		})
	}
}

func TestRemoteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	scope := newScope(t)
	ing := NewIngestor(&fakeExtractor{}, Options{DownloadTimeout: 50 * time.Millisecond})

	_, err := ing.Ingest(context.Background(), Remote{URL: srv.URL + "/slow.wav"}, scope)
	if !errors.Is(err, ErrDownload) {
		t.Fatalf("Ingest() error = %v, want ErrDownload", err)
	}
}

func TestRemoteRejectsBadScheme(t *testing.T) {
	scope := newScope(t)
	_, err := NewIngestor(&fakeExtractor{}, Options{}).Ingest(context.Background(), Remote{URL: "file:///etc/passwd"}, scope)
	if !errors.Is(err, ErrDownload) {
		t.Fatalf("Ingest() error = %v, want ErrDownload", err)
	}
}

func TestCanceledContextIsNotADownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scope := newScope(t)
	_, err := NewIngestor(&fakeExtractor{}, Options{}).Ingest(ctx, Remote{URL: srv.URL + "/a.wav"}, scope)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Ingest() error = %v, want context.Canceled", err)
	}
}

func TestSupportedExtensions(t *testing.T) {
	audio, video := SupportedExtensions()
	if strings.Join(audio, ",") != "aac,flac,m4a,mp3,wav" {
		t.Fatalf("audio = %v", audio)
	}
	if strings.Join(video, ",") != "avi,mkv,mov,mp4,webm" {
		t.Fatalf("video = %v", video)
	}
	if _, ok := Classify(".ts"); ok {
		t.Fatal(".ts must not be accepted")
	}
}

func TestCheckFilename(t *testing.T) {
	if err := CheckFilename("Meeting.MKV"); err != nil {
		t.Fatalf("CheckFilename(mkv) error = %v", err)
	}
	var fe *FormatError
	if err := CheckFilename("notes.txt"); !errors.As(err, &fe) || fe.Ext != ".txt" {
		t.Fatalf("CheckFilename(txt) error = %v", err)
	}
}
