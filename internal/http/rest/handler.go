package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oshokin/trackvault/internal/client/catalog"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/download"
	"github.com/oshokin/trackvault/internal/service/stream"
	"github.com/oshokin/trackvault/internal/telemetry"
)

// StreamOpener opens byte ranges of tracks for playback.
type StreamOpener interface {
	// OpenRange opens the requested byte range of a track. The caller must close the reader.
	OpenRange(ctx context.Context, req *stream.DataRequest) (*stream.RangeReader, error)
}

// Handler serves the HTTP surface.
type Handler struct {
	// orchestrator runs the downloads.
	orchestrator download.Orchestrator
	// streams opens playback ranges.
	streams StreamOpener
	// catalog describes tracks requested by id only.
	catalog catalog.Client
	// telemetry records HTTP metrics and serves /metrics.
	telemetry *telemetry.Telemetry
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	orchestrator download.Orchestrator,
	streams StreamOpener,
	catalogClient catalog.Client,
	tel *telemetry.Telemetry,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		streams:      streams,
		catalog:      catalogClient,
		telemetry:    tel,
	}
}

// Routes returns the router of the HTTP surface.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(h.instrument)

	r.Get("/healthz", h.HandleHealth)
	r.Handle("/metrics", h.telemetry.Handler())

	r.Route("/downloads", func(r chi.Router) {
		r.Get("/", h.HandleListDownloads)
		r.Post("/", h.HandleEnqueue)
		r.Get("/{id}", h.HandleGetDownload)
		r.Delete("/{id}", h.HandleCancel)
		r.Post("/{id}/retry", h.HandleRetry)
	})

	r.Get("/stream/{id}", h.HandleStream)

	return r
}

// HandleHealth reports that the process is serving.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warnf(ctx, "Failed to encode response: %v", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSON(ctx, w, status, errorResponse{
		Error:     message,
		RequestID: telemetry.RequestIDFrom(ctx),
	})
}
