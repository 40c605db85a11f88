package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/bookinga/bookinga-backend/pkg/logger"
)

const (
	requestIDHeader = "X-Request-Id"
	// Set by the Cloud Run front end as TRACE_ID/SPAN_ID;o=OPTIONS.
	cloudTraceHeader = "X-Cloud-Trace-Context"
	maxRequestIDLen  = 64
)

var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// RequestID tags the request with a correlation id, echoes it in the response and adds it to the
// log context. A client id is kept only when it is short and printable; otherwise the Cloud Run
// trace id is used, and failing that a fresh uuid.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := incomingRequestID(r)
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func incomingRequestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); validRequestID(id) {
		return id
	}
	if trace, _, _ := strings.Cut(r.Header.Get(cloudTraceHeader), "/"); validRequestID(trace) {
		return trace
	}
	return uuid.NewString()
}

func validRequestID(id string) bool {
	return id != "" && len(id) <= maxRequestIDLen && requestIDRe.MatchString(id)
}
