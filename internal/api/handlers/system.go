package handlers

import (
	"net/http"

	"github.com/asr-api/backend/internal/job"
	"github.com/asr-api/backend/internal/media"
	"github.com/asr-api/backend/internal/transcript"
)

const Version = "2.0.0"

type SystemHandler struct {
	svc       Transcriber
	tracker   *job.Tracker
	languages []string
}

func NewSystemHandler(svc Transcriber, tracker *job.Tracker, languages []string) *SystemHandler {
	return &SystemHandler{svc: svc, tracker: tracker, languages: languages}
}

type healthResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Version string    `json:"version"`
	Jobs    job.Stats `json:"jobs"`
}

// Health reports 503 until a recognition engine is configured
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.svc.Recognizer() == nil {
		failure(w, http.StatusServiceUnavailable, "ASR processor not initialized", "")
		return
	}
	jsonResponse(w, healthResponse{
		Status:  "healthy",
		Message: "ASR API server is running",
		Version: Version,
		Jobs:    h.tracker.Stats(),
	}, http.StatusOK)
}

// Models describes languages, formats and the engines in use
func (h *SystemHandler) Models(w http.ResponseWriter, r *http.Request) {
	rec := h.svc.Recognizer()
	if rec == nil {
		failure(w, http.StatusServiceUnavailable, "ASR processor not initialized", "")
		return
	}
	audio, video := media.SupportedExtensions()
	engines := map[string]string{"recognizer": rec.Name()}
	dia := h.svc.Diarizer()
	if dia != nil {
		engines["diarizer"] = dia.Name()
	}

	jsonResponse(w, map[string]interface{}{
		"available_languages": h.languages,
		"supported_formats": map[string][]string{
			"audio": dotted(audio),
			"video": dotted(video),
		},
		"output_formats": []transcript.OutputFormat{transcript.FormatText, transcript.FormatSRT, transcript.FormatBoth},
		"features": map[string]bool{
			"speaker_diarization": dia != nil,
			"hotwords":            true,
		},
		"engines": engines,
	}, http.StatusOK)
}

func dotted(exts []string) []string {
	out := make([]string, len(exts))
	for i, e := range exts {
		out[i] = "." + e
	}
	return out
}
