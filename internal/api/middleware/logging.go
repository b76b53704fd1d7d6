package middleware

import (
	"log"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (w *wrappedWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *wrappedWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// silentPaths are probes and scrapes that are only logged on errors (status >= 400).
var silentPaths = map[string]bool{
	"/health":   true,
	"/metrics":  true,
	"/api/jobs": true,
}

func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if silentPaths[r.URL.Path] && wrapped.statusCode < 400 {
			return
		}
		reqID := chimw.GetReqID(r.Context())
		if reqID == "" {
			reqID = "-"
		}
		log.Printf("%s %s %d %dB %s req=%s", r.Method, r.URL.Path, wrapped.statusCode, wrapped.bytes, time.Since(start), reqID)
	})
}
