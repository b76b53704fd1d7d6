package ffmpeg

import (
	"context"
	"log"
	"strings"
	"time"
)

// Capabilities records which media tools are usable on this host
type Capabilities struct {
	FFmpeg  string `json:"ffmpeg"`  // first line of `ffmpeg -version`, empty if missing
	FFprobe string `json:"ffprobe"` // first line of `ffprobe -version`, empty if missing
}

// Ready reports whether both binaries answered
func (c Capabilities) Ready() bool {
	return c.FFmpeg != "" && c.FFprobe != ""
}

// Detect checks the ffmpeg and ffprobe binaries once and caches the result.
// Call at startup.
func (t *Tool) Detect() Capabilities {
	t.detectOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		t.caps = Capabilities{
			FFmpeg:  t.version(ctx, t.ffmpeg),
			FFprobe: t.version(ctx, t.ffprobe),
		}
		if t.caps.Ready() {
			log.Printf("[ffmpeg] %s", t.caps.FFmpeg)
		} else {
			log.Printf("[ffmpeg] WARNING: media tools missing (ffmpeg=%q ffprobe=%q)", t.caps.FFmpeg, t.caps.FFprobe)
		}
	})
	return t.caps
}

func (t *Tool) version(ctx context.Context, bin string) string {
	res, err := t.runner.Run(ctx, bin, "-version")
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return strings.TrimSpace(line)
}
