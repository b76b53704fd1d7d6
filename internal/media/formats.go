package media

import (
	"mime"
	"path"
	"sort"
	"strings"
)

// Kind separates containers that need audio extraction from plain audio
type Kind int

const (
	KindAudio Kind = iota + 1
	KindVideo
)

var extensions = map[string]Kind{
	".wav":  KindAudio,
	".mp3":  KindAudio,
	".aac":  KindAudio,
	".m4a":  KindAudio,
	".flac": KindAudio,
	".mp4":  KindVideo,
	".avi":  KindVideo,
	".mkv":  KindVideo,
	".mov":  KindVideo,
	".webm": KindVideo,
}

var mimeExtensions = map[string]string{
	"audio/wav":        ".wav",
	"audio/wave":       ".wav",
	"audio/x-wav":      ".wav",
	"audio/mpeg":       ".mp3",
	"audio/mp3":        ".mp3",
	"audio/aac":        ".aac",
	"audio/mp4":        ".m4a",
	"audio/x-m4a":      ".m4a",
	"audio/flac":       ".flac",
	"audio/x-flac":     ".flac",
	"video/mp4":        ".mp4",
	"video/x-msvideo":  ".avi",
	"video/x-matroska": ".mkv",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
}

// Classify reports the kind of a file extension (with leading dot, any case)
func Classify(ext string) (Kind, bool) {
	k, ok := extensions[strings.ToLower(ext)]
	return k, ok
}

// SupportedExtensions lists accepted extensions, audio first, without dots
func SupportedExtensions() (audio, video []string) {
	for ext, k := range extensions {
		name := strings.TrimPrefix(ext, ".")
		if k == KindAudio {
			audio = append(audio, name)
		} else {
			video = append(video, name)
		}
	}
	sort.Strings(audio)
	sort.Strings(video)
	return audio, video
}

// CheckFilename rejects names whose extension is not a supported format
func CheckFilename(name string) error {
	ext := extFromName(name)
	if _, ok := Classify(ext); !ok {
		return &FormatError{Ext: ext}
	}
	return nil
}

// extFromName returns the lowercased extension of a file name or URL path
func extFromName(name string) string {
	return strings.ToLower(path.Ext(name))
}

// extFromContentType maps a response Content-Type to an extension.
// Unknown audio types fall back to .wav and unknown video types to .mp4.
func extFromContentType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if ext, ok := mimeExtensions[mt]; ok {
		return ext
	}
	switch {
	case strings.HasPrefix(mt, "video/"):
		return ".mp4"
	case strings.HasPrefix(mt, "audio/"):
		return ".wav"
	}
	return ""
}
