package pipeline

import (
	"maps"

	"github.com/asr-api/backend/internal/engine"
	"github.com/asr-api/backend/internal/transcript"
)

// DefaultLanguage is used when a request names none
const DefaultLanguage = "zh"

// Options is the per-request configuration. It is built once by the
// caller and passed by value; the service copies the maps it holds.
type Options struct {
	Language       string
	Format         transcript.OutputFormat
	Diarization    bool
	Hotwords       engine.Hotwords
	SpeakerNames   transcript.SpeakerNames
	MergeThreshold float64 // seconds
}

// DefaultOptions returns the options a request gets when it sets nothing
func DefaultOptions() Options {
	return Options{
		Language:       DefaultLanguage,
		Format:         transcript.FormatText,
		MergeThreshold: transcript.DefaultMergeThreshold,
	}
}

// normalized fills empty fields with defaults and detaches the maps from
// the caller
func (o Options) normalized() Options {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.Format == "" {
		o.Format = transcript.FormatText
	}
	if o.MergeThreshold < 0 {
		o.MergeThreshold = 0
	}
	o.Hotwords = maps.Clone(o.Hotwords)
	o.SpeakerNames = maps.Clone(o.SpeakerNames)
	return o
}
