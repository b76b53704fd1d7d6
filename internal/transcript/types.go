package transcript

import "encoding/json"

// Span is one piece of recognized text with its timing in seconds
type Span struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Interval is one speaker turn reported by the diarization engine
type Interval struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Segment is a labeled piece of the final transcript.
// HasSpeaker is false when no speaker could be attributed (diarization off
// or no speaker turns reported).
type Segment struct {
	Speaker    string
	HasSpeaker bool
	Text       string
	Start      float64
	End        float64
}

// WithSpeaker returns a copy of s attributed to speaker
func (s Segment) WithSpeaker(speaker string) Segment {
	s.Speaker = speaker
	s.HasSpeaker = true
	return s
}

func (s Segment) sameSpeaker(o Segment) bool {
	if s.HasSpeaker != o.HasSpeaker {
		return false
	}
	return !s.HasSpeaker || s.Speaker == o.Speaker
}

type segmentJSON struct {
	Speaker *string `json:"speaker_id"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// MarshalJSON renders a missing speaker as null
func (s Segment) MarshalJSON() ([]byte, error) {
	out := segmentJSON{Text: s.Text, Start: s.Start, End: s.End}
	if s.HasSpeaker {
		spk := s.Speaker
		out.Speaker = &spk
	}
	return json.Marshal(out)
}

// SpeakerNames maps raw speaker ids (e.g. "spk0") to display names
type SpeakerNames map[string]string

// Label resolves the display label for a raw speaker id
func (n SpeakerNames) Label(speaker string) string {
	if name, ok := n[speaker]; ok && name != "" {
		return name
	}
	return speaker
}

// OutputFormat selects which renderings are produced
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatSRT  OutputFormat = "srt"
	FormatBoth OutputFormat = "both"
)

// ParseOutputFormat validates a format selector; empty means text
func ParseOutputFormat(s string) (OutputFormat, bool) {
	switch OutputFormat(s) {
	case "":
		return FormatText, true
	case FormatText, FormatSRT, FormatBoth:
		return OutputFormat(s), true
	}
	return "", false
}

// Result is the rendered transcript returned to the caller
type Result struct {
	Text     *string  `json:"text"`
	SRT      *string  `json:"srt"`
	Duration float64  `json:"duration"`
	Speakers []string `json:"speakers"`
}
