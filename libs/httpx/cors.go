package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
)

// CORSPolicy lists what browsers on the allowed origins may send and read.
// Origins may use one wildcard, e.g. "https://*.fitbook.app".
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS lets the public trainer pages call the booking API from the browser.
// If AllowedOrigins is empty, it is a no-op.
func WithCORS(cfg CORSPolicy) Middleware {
	origins := normalizeList(cfg.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   normalizeList(cfg.AllowedMethods),
		AllowedHeaders:   normalizeList(cfg.AllowedHeaders),
		ExposedHeaders:   normalizeList(cfg.ExposedHeaders),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	})
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
