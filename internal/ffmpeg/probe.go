package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type probeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // video, audio, subtitle
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

// MediaInfo summarizes what ffprobe found in a container
type MediaInfo struct {
	FormatName  string        `json:"format_name"`
	Duration    float64       `json:"duration"`
	AudioCodec  string        `json:"audio_codec"`
	AudioStream int           `json:"audio_stream"`
	SampleRate  int           `json:"sample_rate"`
	Channels    int           `json:"channels"`
	VideoCodec  string        `json:"video_codec"`
	Streams     []ProbeStream `json:"streams"`
}

// HasAudio reports whether the container carries at least one audio stream
func (m *MediaInfo) HasAudio() bool {
	return m.AudioCodec != ""
}

// Probe runs ffprobe against path and summarizes its streams
func (t *Tool) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	res, err := t.runner.Run(ctx, t.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %s: %w", strings.TrimSpace(res.Stderr), err)
	}

	var result probeResult
	if err := json.Unmarshal([]byte(res.Stdout), &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{
		FormatName:  result.Format.FormatName,
		AudioStream: -1,
		Streams:     result.Streams,
	}
	info.Duration, _ = strconv.ParseFloat(result.Format.Duration, 64)

	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
				info.AudioStream = s.Index
				info.Channels = s.Channels
				info.SampleRate, _ = strconv.Atoi(s.SampleRate)
			}
		}
	}

	return info, nil
}
