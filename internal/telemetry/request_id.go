package telemetry

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/trackvault/internal/logger"
)

// RequestIDHeader is the header clients and proxies use to pass a request id in and read it back.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds ids accepted from the caller.
const maxRequestIDLength = 128

type requestIDKey struct{}

// RequestID tags every API call with an id.
// A caller-supplied id is kept when it is short and printable, otherwise a fresh UUID is used.
// Handlers read it with RequestIDFrom, and every log line written with the request context carries it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if !acceptableRequestID(id) {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)

		ctx := logger.WithKV(context.WithValue(r.Context(), requestIDKey{}, id), "request_id", id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the id of the API call served with ctx, or "" outside of one.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)

	return id
}

func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}

	for _, r := range id {
		if r < '!' || r > '~' {
			return false
		}
	}

	return true
}
