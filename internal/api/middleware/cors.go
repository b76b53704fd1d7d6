package middleware

import (
	"github.com/go-chi/cors"
)

// CORSHandler builds the CORS policy. Uploads are POSTed from browsers, so
// multipart content types and the request id header are allowed.
func CORSHandler(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// credentials cannot be combined with a wildcard origin
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-Id", "Retry-After"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}
