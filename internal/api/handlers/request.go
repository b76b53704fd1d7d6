package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/asr-api/backend/internal/engine"
	"github.com/asr-api/backend/internal/pipeline"
	"github.com/asr-api/backend/internal/transcript"
)

// Defaults are the server-side request defaults
type Defaults struct {
	Language       string
	Languages      []string
	MergeThreshold float64 // seconds
}

// requestError is a validation failure reported as 400
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// rawOptions holds the request fields before validation. Hotwords and
// speaker names may arrive as a JSON object or as their string encoding.
type rawOptions struct {
	OutputFormat   string          `json:"output_format"`
	Language       string          `json:"language"`
	Diarization    bool            `json:"enable_speaker_diarization"`
	Hotwords       json.RawMessage `json:"hotwords"`
	SpeakerNames   json.RawMessage `json:"speaker_names"`
	MergeThreshold *float64        `json:"merge_threshold"`
}

func (d Defaults) build(raw rawOptions) (pipeline.Options, error) {
	opts := pipeline.Options{MergeThreshold: d.MergeThreshold}

	format, ok := transcript.ParseOutputFormat(strings.TrimSpace(raw.OutputFormat))
	if !ok {
		return opts, invalid("output_format must be 'text', 'srt', or 'both'")
	}
	opts.Format = format

	opts.Language = strings.TrimSpace(raw.Language)
	if opts.Language == "" {
		opts.Language = d.Language
	}
	if !d.supports(opts.Language) {
		return opts, invalid("language must be one of: %s", strings.Join(d.Languages, ", "))
	}

	opts.Diarization = raw.Diarization

	hw, err := parseHotwords(raw.Hotwords)
	if err != nil {
		return opts, err
	}
	opts.Hotwords = hw

	names, err := parseSpeakerNames(raw.SpeakerNames)
	if err != nil {
		return opts, err
	}
	opts.SpeakerNames = names

	if raw.MergeThreshold != nil {
		if *raw.MergeThreshold < 0 {
			return opts, invalid("merge_threshold must not be negative")
		}
		opts.MergeThreshold = *raw.MergeThreshold
	}
	return opts, nil
}

func (d Defaults) supports(lang string) bool {
	if len(d.Languages) == 0 {
		return true
	}
	for _, l := range d.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// formOptions reads the multipart fields into rawOptions
func formOptions(get func(string) string) (rawOptions, error) {
	raw := rawOptions{
		OutputFormat: get("output_format"),
		Language:     get("language"),
		Hotwords:     textField(get("hotwords")),
		SpeakerNames: textField(get("speaker_names")),
	}
	if v := strings.TrimSpace(get("enable_speaker_diarization")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return raw, invalid("enable_speaker_diarization must be a boolean")
		}
		raw.Diarization = b
	}
	if v := strings.TrimSpace(get("merge_threshold")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return raw, invalid("merge_threshold must be a number of seconds")
		}
		raw.MergeThreshold = &f
	}
	return raw, nil
}

// textField passes a form value through as JSON when it is an object and
// encodes it as a JSON string otherwise
func textField(v string) json.RawMessage {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if strings.HasPrefix(v, "{") && json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	b, _ := json.Marshal(v)
	return b
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// parseHotwords accepts {"phrase": weight} or "phrase weight" lines
func parseHotwords(raw json.RawMessage) (engine.Hotwords, error) {
	if isNull(raw) {
		return nil, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return engine.ParseHotwordLines(text), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, invalid("hotwords must be an object of phrase to weight or newline separated 'word weight' pairs")
	}
	weights := make(map[string]float64, len(obj))
	for phrase, v := range obj {
		var w float64
		if err := json.Unmarshal(v, &w); err != nil {
			log.Printf("[api] dropping hotword %q: weight %s is not a number", phrase, v)
			continue
		}
		weights[phrase] = w
	}
	return engine.NormalizeHotwords(weights), nil
}

// parseSpeakerNames accepts {"spk0": "Alice"} or "spk0:Alice,spk1:Bob"
func parseSpeakerNames(raw json.RawMessage) (transcript.SpeakerNames, error) {
	if isNull(raw) {
		return nil, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return speakerNamesFromPairs(text), nil
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, invalid("speaker_names must be an object of id to name or comma separated 'id:name' pairs")
	}
	names := make(transcript.SpeakerNames, len(obj))
	for id, name := range obj {
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" || name == "" {
			log.Printf("[api] dropping speaker name %q:%q", id, name)
			continue
		}
		names[id] = name
	}
	return names, nil
}

func speakerNamesFromPairs(s string) transcript.SpeakerNames {
	names := make(transcript.SpeakerNames)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, name, ok := strings.Cut(pair, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			log.Printf("[api] dropping malformed speaker name pair %q", pair)
			continue
		}
		names[id] = name
	}
	return names
}
