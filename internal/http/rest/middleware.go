package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oshokin/trackvault/internal/logger"
)

// unmatchedRoute labels requests that matched no route, keeping metric cardinality bounded.
const unmatchedRoute = "unmatched"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter

	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}

	rw.status = code
	rw.wroteHeader = true

	rw.ResponseWriter.WriteHeader(code)
}

// Write captures an implicit 200 OK if WriteHeader was not called.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}

	return rw.ResponseWriter.Write(b)
}

// Flush lets streamed responses reach the client before the handler returns.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// instrument records RED metrics and logs every request with a level chosen by its status.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			ctx     = r.Context()
			start   = time.Now()
			wrapped = wrapResponseWriter(w)
		)

		h.telemetry.IncrementHTTPInFlight()
		defer h.telemetry.DecrementHTTPInFlight()

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		// The pattern is known only after routing.
		route := unmatchedRoute
		if routeCtx := chi.RouteContext(ctx); routeCtx != nil && routeCtx.RoutePattern() != "" {
			route = routeCtx.RoutePattern()
		}

		h.telemetry.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapped.status), duration)

		keysAndValues := []any{
			"method", r.Method,
			"route", route,
			"status", wrapped.status,
			"duration_ms", duration.Milliseconds(),
		}

		switch {
		case wrapped.status >= http.StatusInternalServerError:
			logger.ErrorKV(ctx, "HTTP request completed", keysAndValues...)
		case wrapped.status >= http.StatusBadRequest:
			logger.WarnKV(ctx, "HTTP request completed", keysAndValues...)
		default:
			logger.DebugKV(ctx, "HTTP request completed", keysAndValues...)
		}
	})
}
