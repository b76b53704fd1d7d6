package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/asr-api/backend/internal/engine"
	"github.com/asr-api/backend/internal/media"
	"github.com/asr-api/backend/internal/pipeline"
)

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

// failure writes the structured error body used by the transcription routes
func failure(w http.ResponseWriter, status int, msg, detail string) {
	jsonResponse(w, failureResponse{Success: false, Error: msg, Detail: clean(detail)}, status)
}

// transcriptionFailure maps a pipeline error to its status and message
func transcriptionFailure(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "transcription failed"
	switch {
	case errors.Is(err, media.ErrUnsupportedFormat):
		status, msg = http.StatusBadRequest, "unsupported file format"
	case errors.Is(err, media.ErrTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, media.ErrDownload):
		status, msg = http.StatusBadGateway, "download failed"
	case errors.Is(err, media.ErrMediaDecode):
		status, msg = http.StatusUnprocessableEntity, "could not decode media"
	case errors.Is(err, engine.ErrEngine):
		status, msg = http.StatusBadGateway, "engine failure"
	case errors.Is(err, pipeline.ErrNoRecognizer):
		status, msg = http.StatusServiceUnavailable, "ASR processor not initialized"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, msg = http.StatusGatewayTimeout, "transcription timed out or was cancelled"
	}
	failure(w, status, msg, err.Error())
}

// clean drops NUL bytes that would corrupt the JSON consumers see
func clean(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
