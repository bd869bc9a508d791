// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP ingress middleware stack for the
// API server.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	xglog "github.com/ManuGH/reelfeed/internal/log"
)

const requestIDHeader = "X-Request-Id"

// Recoverer converts handler panics into 500 responses instead of
// tearing down the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				l := xglog.WithComponentFromContext(r.Context(), "api")
				l.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("handler panic recovered")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestID assigns every request a correlation id, honoring an
// inbound X-Request-Id when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := xglog.ContextWithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ViewerIdentity lifts the viewer id from the X-Viewer-Id header into
// the request context. Anonymous requests pass through unchanged.
func ViewerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if viewer := r.Header.Get("X-Viewer-Id"); viewer != "" {
			r = r.WithContext(xglog.ContextWithViewerID(r.Context(), viewer))
		}
		next.ServeHTTP(w, r)
	})
}

// Logging emits one structured log line per request with latency and
// status, correlated via the context request id.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lw, r)

		l := xglog.WithComponentFromContext(r.Context(), "api")
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", lw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(statusCode int) {
	if !sw.written {
		sw.statusCode = statusCode
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}
