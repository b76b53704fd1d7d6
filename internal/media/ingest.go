// Package media turns uploaded or remote media into a local 16 kHz mono WAV
// that the recognition engines can read.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/asr-api/backend/internal/ffmpeg"
	"github.com/asr-api/backend/internal/scratch"
)

// Source is either an Upload or a Remote reference. It is consumed once.
type Source interface {
	source()
}

// Upload is a file sent in the request body
type Upload struct {
	Filename string
	Content  io.Reader
}

// Remote is a file the service fetches over HTTP(S)
type Remote struct {
	URL string
}

func (Upload) source() {}
func (Remote) source() {}

// Extractor is the subset of ffmpeg.Tool the ingestor needs
type Extractor interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	ExtractAudio(ctx context.Context, input, output string) error
}

// Options bounds what the ingestor accepts
type Options struct {
	MaxUploadBytes   int64
	MaxDownloadBytes int64
	DownloadTimeout  time.Duration
	// HTTPClient overrides the download client; its Timeout is replaced
	// by DownloadTimeout when that is set.
	HTTPClient *http.Client
}

// Ingestor materializes a Source as an engine-ready WAV inside a scratch scope
type Ingestor struct {
	tool   Extractor
	client *http.Client
	opts   Options
}

func NewIngestor(tool Extractor, opts Options) *Ingestor {
	client := &http.Client{}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		client = &c
	}
	if opts.DownloadTimeout > 0 {
		client.Timeout = opts.DownloadTimeout
	}
	return &Ingestor{tool: tool, client: client, opts: opts}
}

// Ingest stores src in scope and returns the path of a 16 kHz mono WAV.
// Every file it creates is registered with scope before returning, on
// success and on failure.
func (i *Ingestor) Ingest(ctx context.Context, src Source, scope *scratch.Scope) (string, error) {
	var (
		input string
		kind  Kind
		err   error
	)
	switch s := src.(type) {
	case Upload:
		input, kind, err = i.saveUpload(s, scope)
	case *Upload:
		input, kind, err = i.saveUpload(*s, scope)
	case Remote:
		input, kind, err = i.download(ctx, s, scope)
	case *Remote:
		input, kind, err = i.download(ctx, *s, scope)
	default:
		return "", fmt.Errorf("unknown media source %T", src)
	}
	if err != nil {
		return "", err
	}
	return i.normalize(ctx, input, kind, scope)
}

func (i *Ingestor) saveUpload(u Upload, scope *scratch.Scope) (string, Kind, error) {
	ext := extFromName(u.Filename)
	kind, ok := Classify(ext)
	if !ok {
		return "", 0, &FormatError{Ext: ext}
	}
	if u.Content == nil {
		return "", 0, fmt.Errorf("%w: empty upload", ErrMediaDecode)
	}

	f, err := scope.CreateTemp("upload-*" + ext)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n, err := copyLimited(f, u.Content, i.opts.MaxUploadBytes)
	if err != nil {
		return "", 0, fmt.Errorf("save upload: %w", err)
	}
	log.Printf("[media] saved upload %q (%d bytes)", u.Filename, n)
	return f.Name(), kind, nil
}

func (i *Ingestor) download(ctx context.Context, r Remote, scope *scratch.Scope) (string, Kind, error) {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", 0, fmt.Errorf("%w: invalid url %q", ErrDownload, r.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	req.Header.Set("User-Agent", "asr-api")

	start := time.Now()
	resp, err := i.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		return "", 0, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("%w: %s returned status %d", ErrDownload, u.Redacted(), resp.StatusCode)
	}

	ext := extFromName(u.Path)
	if ext == "" {
		ext = extFromContentType(resp.Header.Get("Content-Type"))
	}
	kind, ok := Classify(ext)
	if !ok {
		return "", 0, &FormatError{Ext: ext}
	}

	if limit := i.opts.MaxDownloadBytes; limit > 0 && resp.ContentLength > limit {
		return "", 0, fmt.Errorf("%w: content length %d exceeds limit %d", ErrDownload, resp.ContentLength, limit)
	}

	f, err := scope.CreateTemp("download-*" + ext)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	n, err := copyLimited(f, resp.Body, i.opts.MaxDownloadBytes)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		return "", 0, fmt.Errorf("%w: %v", ErrDownload, err)
	}

	log.Printf("[media] downloaded %s (%d bytes, %s)", u.Redacted(), n, time.Since(start).Round(time.Millisecond))
	return f.Name(), kind, nil
}

// normalize probes the stored input and converts it to a 16 kHz mono WAV.
// Inputs that already have that layout are used as they are.
func (i *Ingestor) normalize(ctx context.Context, input string, kind Kind, scope *scratch.Scope) (string, error) {
	info, err := i.tool.Probe(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrMediaDecode, err)
	}
	if !info.HasAudio() {
		return "", fmt.Errorf("%w: no audio stream found", ErrMediaDecode)
	}

	if kind == KindAudio && isEngineReady(info) && extFromName(input) == ".wav" {
		return input, nil
	}

	out, err := scope.CreateTemp("audio-*.wav")
	if err != nil {
		return "", err
	}
	out.Close()

	if err := i.tool.ExtractAudio(ctx, input, out.Name()); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrMediaDecode, err)
	}
	return out.Name(), nil
}

func isEngineReady(info *ffmpeg.MediaInfo) bool {
	return info.AudioCodec == "pcm_s16le" &&
		info.SampleRate == ffmpeg.SampleRate &&
		info.Channels == ffmpeg.Channels
}

// copyLimited copies src into dst, failing with ErrTooLarge once more than
// limit bytes arrive. limit <= 0 disables the check.
func copyLimited(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return n, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxErr.Limit)
		}
		return n, err
	}
	if limit > 0 && n > limit {
		return n, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, limit)
	}
	return n, nil
}
