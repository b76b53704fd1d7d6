package engine

import (
	"fmt"
	"log"
	"time"
)

// Backend names accepted in configuration
const (
	BackendNone       = "none"
	BackendMock       = "mock"
	BackendHTTP       = "http"
	BackendWhisperCpp = "whisper.cpp"
	BackendExec       = "exec"
)

// Settings selects and configures one backend
type Settings struct {
	Backend string
	URL     string
	Command string
	Timeout time.Duration
}

// NewRecognizer builds the configured recognition backend.
// Backend "none" returns a nil Recognizer and no error.
func NewRecognizer(s Settings) (Recognizer, error) {
	var (
		r   Recognizer
		err error
	)
	switch s.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMock:
		log.Printf("[engine] WARNING: mock recognizer active, transcripts are synthetic")
		r = NewMockRecognizer()
	case BackendHTTP:
		if s.URL == "" {
			return nil, fmt.Errorf("recognizer backend %q needs a url", s.Backend)
		}
		r = NewHTTPRecognizer(s.URL, s.Timeout)
	case BackendWhisperCpp:
		if s.URL == "" {
			return nil, fmt.Errorf("recognizer backend %q needs a url", s.Backend)
		}
		r = NewWhisperCppRecognizer(s.URL, s.Timeout)
	case BackendExec:
		r, err = NewExecRecognizer(s.Command)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", s.Backend)
	}
	log.Printf("[engine] registered %s recognizer", r.Name())
	return r, nil
}

// NewDiarizer builds the configured diarization backend.
// Backend "none" returns a nil Diarizer and no error.
func NewDiarizer(s Settings) (Diarizer, error) {
	var (
		d   Diarizer
		err error
	)
	switch s.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendMock:
		log.Printf("[engine] WARNING: mock diarizer active, speaker turns are synthetic")
		d = NewMockDiarizer()
	case BackendHTTP:
		if s.URL == "" {
			return nil, fmt.Errorf("diarizer backend %q needs a url", s.Backend)
		}
		d = NewHTTPDiarizer(s.URL, s.Timeout)
	case BackendExec:
		d, err = NewExecDiarizer(s.Command)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown diarizer backend %q", s.Backend)
	}
	log.Printf("[engine] registered %s diarizer", d.Name())
	return d, nil
}
