package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asr-api/backend/internal/transcript"
)

// maxResponseBytes caps how much of an engine response is read
const maxResponseBytes = 32 << 20

// inferenceClient posts audio files to an inference server as multipart forms
type inferenceClient struct {
	baseURL    string
	httpClient *http.Client
}

func newInferenceClient(baseURL string, timeout time.Duration) *inferenceClient {
	return &inferenceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// post streams audioPath as the "file" field together with fields and
// returns the response body of a 200 reply
func (c *inferenceClient) post(ctx context.Context, endpoint, audioPath string, fields map[string]string) ([]byte, error) {
	audioFile, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer audioFile.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audioFile); err != nil {
			pw.CloseWithError(fmt.Errorf("copy audio data: %w", err))
			return
		}
		for k, v := range fields {
			if err := writer.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(writer.Close())
	}()

	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Printf("[engine] sending request to %s (audio: %s)", url, filepath.Base(audioPath))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// HTTPRecognizer calls POST {baseURL}/recognize
type HTTPRecognizer struct {
	client *inferenceClient
}

func NewHTTPRecognizer(baseURL string, timeout time.Duration) *HTTPRecognizer {
	return &HTTPRecognizer{client: newInferenceClient(baseURL, timeout)}
}

func (r *HTTPRecognizer) Name() string {
	return "http:" + r.client.baseURL
}

func (r *HTTPRecognizer) Transcribe(ctx context.Context, audioPath, language string, hotwords Hotwords) ([]transcript.Span, error) {
	fields := map[string]string{}
	if language != "" && language != "auto" {
		fields["language"] = language
	}
	if len(hotwords) > 0 {
		fields["hotwords"] = hotwords.EngineString()
	}

	body, err := r.client.post(ctx, "/recognize", audioPath, fields)
	if err != nil {
		return nil, failure(ctx, r.Name(), err)
	}
	spans, err := decodeSpans(body)
	if err != nil {
		return nil, failure(ctx, r.Name(), err)
	}
	return spans, nil
}

// HTTPDiarizer calls POST {baseURL}/diarize
type HTTPDiarizer struct {
	client *inferenceClient
}

func NewHTTPDiarizer(baseURL string, timeout time.Duration) *HTTPDiarizer {
	return &HTTPDiarizer{client: newInferenceClient(baseURL, timeout)}
}

func (d *HTTPDiarizer) Name() string {
	return "http:" + d.client.baseURL
}

func (d *HTTPDiarizer) Diarize(ctx context.Context, audioPath string) ([]transcript.Interval, error) {
	body, err := d.client.post(ctx, "/diarize", audioPath, nil)
	if err != nil {
		return nil, failure(ctx, d.Name(), err)
	}
	intervals, err := decodeIntervals(body)
	if err != nil {
		return nil, failure(ctx, d.Name(), err)
	}
	return intervals, nil
}
