package transcript

import (
	"fmt"
	"math"
	"strings"
)

// FormatOptions controls how segments are rendered
type FormatOptions struct {
	Format      OutputFormat
	Diarization bool
	Names       SpeakerNames
}

// Format renders merged segments as plain text and/or SRT.
// Speaker labels only appear when diarization was requested; Speakers
// always lists raw ids in order of first appearance.
func Format(segs []Segment, opts FormatOptions) Result {
	res := Result{Speakers: []string{}}

	if opts.Diarization {
		seen := make(map[string]bool)
		for _, s := range segs {
			if s.HasSpeaker && !seen[s.Speaker] {
				seen[s.Speaker] = true
				res.Speakers = append(res.Speakers, s.Speaker)
			}
		}
	}

	switch opts.Format {
	case FormatSRT:
		srt := RenderSRT(segs, opts)
		res.SRT = &srt
	case FormatBoth:
		text := RenderText(segs, opts)
		srt := RenderSRT(segs, opts)
		res.Text = &text
		res.SRT = &srt
	default:
		text := RenderText(segs, opts)
		res.Text = &text
	}
	return res
}

// RenderText joins segment texts with newlines, prefixing "[label] " when
// diarization is on
func RenderText(segs []Segment, opts FormatOptions) string {
	lines := make([]string, 0, len(segs))
	for _, s := range segs {
		if opts.Diarization && s.HasSpeaker {
			lines = append(lines, "["+opts.Names.Label(s.Speaker)+"] "+s.Text)
			continue
		}
		lines = append(lines, s.Text)
	}
	return strings.Join(lines, "\n")
}

// RenderSRT renders numbered subtitle blocks starting at 1
func RenderSRT(segs []Segment, opts FormatOptions) string {
	var sb strings.Builder
	for i, s := range segs {
		if opts.Diarization && s.HasSpeaker {
			fmt.Fprintf(&sb, "%d  [%s]\n", i+1, opts.Names.Label(s.Speaker))
		} else {
			fmt.Fprintf(&sb, "%d\n", i+1)
		}
		fmt.Fprintf(&sb, "%s --> %s\n", FormatTimestamp(s.Start), FormatTimestamp(s.End))
		sb.WriteString(s.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Milliseconds are
// truncated; the epsilon absorbs float noise such as 0.29*1000 = 289.99...
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	totalMs := int64(math.Floor(seconds*1000 + 1e-6))
	h := totalMs / 3600000
	totalMs %= 3600000
	m := totalMs / 60000
	totalMs %= 60000
	s := totalMs / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
