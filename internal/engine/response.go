package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/asr-api/backend/internal/transcript"
)

// speakerID accepts either a string label or a numeric cluster index.
// Numbers become "spk<n>".
type speakerID string

func (s *speakerID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = speakerID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("speaker must be a string or number: %w", err)
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("speaker index %s: %w", n, err)
	}
	*s = speakerID("spk" + strconv.FormatInt(i, 10))
	return nil
}

type spanPayload struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type turnPayload struct {
	Speaker speakerID `json:"speaker"`
	Start   float64   `json:"start"`
	End     float64   `json:"end"`
}

// recognizeResponse is the JSON both the HTTP and exec backends return.
// TimeUnit "ms" switches timestamps from seconds to milliseconds.
type recognizeResponse struct {
	TimeUnit string        `json:"time_unit"`
	Segments []spanPayload `json:"segments"`
}

type diarizeResponse struct {
	TimeUnit string        `json:"time_unit"`
	Segments []turnPayload `json:"segments"`
}

// timeDivisor converts response timestamps to seconds
func timeDivisor(unit string) (float64, error) {
	switch strings.ToLower(unit) {
	case "", "s", "sec", "seconds":
		return 1, nil
	case "ms", "milliseconds":
		return 1000, nil
	}
	return 0, fmt.Errorf("unknown time_unit %q", unit)
}

func decodeSpans(body []byte) ([]transcript.Span, error) {
	var resp recognizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode recognition response: %w", err)
	}
	div, err := timeDivisor(resp.TimeUnit)
	if err != nil {
		return nil, err
	}
	spans := make([]transcript.Span, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		spans = append(spans, transcript.Span{
			Text:  strings.TrimSpace(s.Text),
			Start: s.Start / div,
			End:   s.End / div,
		})
	}
	return spans, nil
}

func decodeIntervals(body []byte) ([]transcript.Interval, error) {
	var resp diarizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}
	div, err := timeDivisor(resp.TimeUnit)
	if err != nil {
		return nil, err
	}
	out := make([]transcript.Interval, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		out = append(out, transcript.Interval{
			Speaker: string(s.Speaker),
			Start:   s.Start / div,
			End:     s.End / div,
		})
	}
	return out, nil
}

// failure wraps err as an engine failure unless ctx ended first, in which
// case the context error is returned so callers can tell a timeout or
// disconnect from a backend fault.
func failure(ctx context.Context, backend string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", backend, ctxErr)
	}
	return fmt.Errorf("%w: %s: %v", ErrEngine, backend, err)
}
