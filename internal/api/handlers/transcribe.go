package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/asr-api/backend/internal/engine"
	"github.com/asr-api/backend/internal/job"
	"github.com/asr-api/backend/internal/media"
	"github.com/asr-api/backend/internal/pipeline"
	"github.com/asr-api/backend/internal/transcript"
)

// multipart fields other than the file are small; this is the slack on top
// of the upload limit
const formOverhead = 1 << 20

// formMemory is how much of a multipart upload is held in memory before
// it spills to a temporary file
const formMemory = 32 << 20

// Transcriber runs the transcription pipeline
type Transcriber interface {
	Transcribe(ctx context.Context, src media.Source, opts pipeline.Options) (*pipeline.Outcome, error)
	Recognizer() engine.Recognizer
	Diarizer() engine.Diarizer
}

type TranscribeHandler struct {
	svc       Transcriber
	tracker   *job.Tracker
	defaults  Defaults
	maxUpload int64
}

func NewTranscribeHandler(svc Transcriber, tracker *job.Tracker, defaults Defaults, maxUpload int64) *TranscribeHandler {
	return &TranscribeHandler{svc: svc, tracker: tracker, defaults: defaults, maxUpload: maxUpload}
}

type transcriptionResponse struct {
	Success            bool     `json:"success"`
	Transcription      string   `json:"transcription"`
	TranscriptionSRT   *string  `json:"transcription_srt"`
	Format             string   `json:"format"`
	Language           string   `json:"language"`
	SpeakerDiarization bool     `json:"speaker_diarization"`
	Duration           float64  `json:"duration"`
	Speakers           []string `json:"speakers"`
	RequestID          string   `json:"request_id"`
	Degraded           bool     `json:"diarization_degraded,omitempty"`
}

type urlRequest struct {
	URL string `json:"url"`
	rawOptions
}

// Transcribe handles a multipart upload
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)
	}
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			failure(w, http.StatusRequestEntityTooLarge, "file too large", err.Error())
			return
		}
		failure(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		failure(w, http.StatusBadRequest, "missing file", err.Error())
		return
	}
	defer file.Close()

	if h.maxUpload > 0 && header.Size > h.maxUpload {
		failure(w, http.StatusRequestEntityTooLarge, "file too large", "")
		return
	}
	if err := media.CheckFilename(header.Filename); err != nil {
		transcriptionFailure(w, err)
		return
	}

	raw, err := formOptions(r.FormValue)
	if err != nil {
		failure(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	opts, err := h.defaults.build(raw)
	if err != nil {
		failure(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	h.run(w, r, "upload", media.Upload{Filename: header.Filename, Content: file}, opts)
}

// TranscribeURL handles a JSON body naming a remote file
func (h *TranscribeHandler) TranscribeURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		failure(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		failure(w, http.StatusBadRequest, "url is required", "")
		return
	}
	opts, err := h.defaults.build(req.rawOptions)
	if err != nil {
		failure(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	h.run(w, r, "url", media.Remote{URL: req.URL}, opts)
}

func (h *TranscribeHandler) run(w http.ResponseWriter, r *http.Request, source string, src media.Source, opts pipeline.Options) {
	if h.svc.Recognizer() == nil {
		transcriptionFailure(w, pipeline.ErrNoRecognizer)
		return
	}

	meta := job.Meta{
		Source:      source,
		Format:      string(opts.Format),
		Language:    opts.Language,
		Diarization: opts.Diarization,
	}
	j, out, err := h.tracker.Run(r.Context(), meta, func(ctx context.Context) (*pipeline.Outcome, error) {
		return h.svc.Transcribe(ctx, src, opts)
	})
	if err != nil {
		log.Printf("[api] transcription %s failed: %v", j.ID, err)
		transcriptionFailure(w, err)
		return
	}

	jsonResponse(w, buildResponse(j.ID, opts, out), http.StatusOK)
}

// buildResponse puts the SRT into transcription for the srt format and into
// transcription_srt only for both
func buildResponse(id string, opts pipeline.Options, out *pipeline.Outcome) transcriptionResponse {
	resp := transcriptionResponse{
		Success:            true,
		Format:             string(opts.Format),
		Language:           opts.Language,
		SpeakerDiarization: opts.Diarization,
		Duration:           out.Result.Duration,
		Speakers:           out.Result.Speakers,
		RequestID:          id,
		Degraded:           out.Degraded,
	}
	if resp.Speakers == nil {
		resp.Speakers = []string{}
	}
	switch opts.Format {
	case transcript.FormatSRT:
		resp.Transcription = clean(deref(out.Result.SRT))
	case transcript.FormatBoth:
		resp.Transcription = clean(deref(out.Result.Text))
		srt := clean(deref(out.Result.SRT))
		resp.TranscriptionSRT = &srt
	default:
		resp.Transcription = clean(deref(out.Result.Text))
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
