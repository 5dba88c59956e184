package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/foodbowl/foodbowl-backend/pkg/logger"
)

const (
	requestIDHeader    = "X-Request-Id"
	cloudTraceHeader   = "X-Cloud-Trace-Context"
	maxRequestIDLength = 128
)

// RequestID tags the request with an id for logs and the response header.
// A well-formed X-Request-Id wins, then the Cloud Run trace id, otherwise a
// fresh UUID.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := inboundRequestID(r)
			w.Header().Set(requestIDHeader, id)

			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func inboundRequestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); validRequestID(id) {
		return id
	}
	// format: TRACE_ID/SPAN_ID;o=OPTIONS
	if trace := r.Header.Get(cloudTraceHeader); trace != "" {
		id, _, _ := strings.Cut(trace, "/")
		if validRequestID(id) {
			return id
		}
	}
	return uuid.NewString()
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
