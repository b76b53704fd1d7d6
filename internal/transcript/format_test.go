package transcript

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestFormatSRTWithSpeaker(t *testing.T) {
	segs := []Segment{spk("spk0", "hello world", 1.3, 3.46)}

	res := Format(segs, FormatOptions{Format: FormatSRT, Diarization: true})
	if res.SRT == nil {
		t.Fatal("SRT is nil")
	}
	want := "1  [spk0]\n00:00:01,300 --> 00:00:03,460\nhello world\n\n"
	if *res.SRT != want {
		t.Fatalf("SRT = %q, want %q", *res.SRT, want)
	}
	if res.Text != nil {
		t.Fatalf("Text = %q, want nil for srt format", *res.Text)
	}
}

func TestFormatWithoutDiarizationDropsLabels(t *testing.T) {
	segs := []Segment{
		spk("spk0", "hello", 0, 1),
		spk("spk1", "there", 1, 2),
	}
	names := SpeakerNames{"spk0": "Alice", "spk1": "Bob"}

	res := Format(segs, FormatOptions{Format: FormatBoth, Diarization: false, Names: names})
	if res.Text == nil || res.SRT == nil {
		t.Fatal("both format must produce text and srt")
	}
	for _, out := range []string{*res.Text, *res.SRT} {
		if strings.ContainsAny(out, "[]") {
			t.Fatalf("output contains speaker brackets: %q", out)
		}
	}
	if *res.Text != "hello\nthere" {
		t.Fatalf("Text = %q", *res.Text)
	}
	wantSRT := "1\n00:00:00,000 --> 00:00:01,000\nhello\n\n2\n00:00:01,000 --> 00:00:02,000\nthere\n\n"
	if *res.SRT != wantSRT {
		t.Fatalf("SRT = %q, want %q", *res.SRT, wantSRT)
	}
	if len(res.Speakers) != 0 {
		t.Fatalf("Speakers = %v, want empty", res.Speakers)
	}
}

func TestFormatAppliesSpeakerNames(t *testing.T) {
	segs := []Segment{
		spk("spk1", "first", 0, 1),
		spk("spk0", "second", 1, 2),
		spk("spk1", "third", 2, 3),
	}
	names := SpeakerNames{"spk1": "Alice"}

	res := Format(segs, FormatOptions{Format: FormatText, Diarization: true, Names: names})
	if res.SRT != nil {
		t.Fatal("SRT must be nil for text format")
	}
	want := "[Alice] first\n[spk0] second\n[Alice] third"
	if *res.Text != want {
		t.Fatalf("Text = %q, want %q", *res.Text, want)
	}
	if !reflect.DeepEqual(res.Speakers, []string{"spk1", "spk0"}) {
		t.Fatalf("Speakers = %v, want raw ids in first-appearance order", res.Speakers)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{0.29, "00:00:00,290"},
		{0.2999, "00:00:00,299"},
		{59.9999, "00:00:59,999"},
		{61.05, "00:01:01,050"},
		{3661.5, "01:01:01,500"},
		{360000, "100:00:00,000"},
		{-1, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.seconds); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestSegmentJSONNullSpeaker(t *testing.T) {
	data, err := json.Marshal([]Segment{{Text: "a", Start: 0, End: 1}, spk("spk0", "b", 1, 2)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"speaker_id":null,"text":"a","start":0,"end":1},{"speaker_id":"spk0","text":"b","start":1,"end":2}]`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}

func TestParseOutputFormat(t *testing.T) {
	if f, ok := ParseOutputFormat(""); !ok || f != FormatText {
		t.Fatalf("empty format = %q, %v", f, ok)
	}
	if _, ok := ParseOutputFormat("vtt"); ok {
		t.Fatal("vtt must be rejected")
	}
}
