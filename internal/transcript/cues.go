package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var cueTimestampRe = regexp.MustCompile(`(\d{2,}:\d{2}:\d{2}[.,]\d{3})\s*-->\s*(\d{2,}:\d{2}:\d{2}[.,]\d{3})`)

// ParseCues reads WebVTT or SRT subtitle content into spans.
// Multi-line cue text is joined with a space.
func ParseCues(content string) []Span {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var spans []Span
	var current *Span

	flush := func() {
		if current != nil && current.Text != "" {
			spans = append(spans, *current)
		}
		current = nil
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "WEBVTT") {
			flush()
			continue
		}

		if m := cueTimestampRe.FindStringSubmatch(line); len(m) == 3 {
			flush()
			current = &Span{
				Start: parseCueTimestamp(m[1]),
				End:   parseCueTimestamp(m[2]),
			}
			continue
		}

		// cue index numbers
		if _, err := strconv.Atoi(line); err == nil && current == nil {
			continue
		}

		if current != nil {
			if current.Text != "" {
				current.Text += " "
			}
			current.Text += line
		}
	}
	flush()

	return spans
}

func parseCueTimestamp(ts string) float64 {
	ts = strings.Replace(ts, ",", ".", 1)
	var h, m, s, ms int
	fmt.Sscanf(ts, "%d:%d:%d.%d", &h, &m, &s, &ms)
	return float64(h*3600+m*60+s) + float64(ms)/1000.0
}
