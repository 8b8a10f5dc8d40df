package rest

import (
	"cmp"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/download"
)

// maxRequestBodyBytes bounds the size of a download request.
const maxRequestBodyBytes = 1 << 20

// enqueueRequest is the body of POST /downloads.
type enqueueRequest struct {
	// Tracks carries tracks with their metadata; tracks without metadata are described by the catalogue.
	Tracks []*download.Track `json:"tracks"`
	// IDs carries bare track ids.
	IDs []string `json:"ids"`
}

// enqueueResponse lists the requested track ids.
type enqueueResponse struct {
	Queued []string `json:"queued"`
}

// listResponse is the body of GET /downloads.
type listResponse struct {
	Downloads []download.State `json:"downloads"`
	Counts    download.Counts  `json:"counts"`
}

// HandleListDownloads returns the unified state view ordered by track id.
func (h *Handler) HandleListDownloads(w http.ResponseWriter, r *http.Request) {
	states := h.orchestrator.States()
	snapshot := states.Snapshot()

	downloads := make([]download.State, 0, len(snapshot))
	for _, state := range snapshot {
		downloads = append(downloads, state)
	}

	slices.SortFunc(downloads, func(a, b download.State) int {
		return cmp.Compare(a.TrackID, b.TrackID)
	})

	writeJSON(r.Context(), w, http.StatusOK, listResponse{
		Downloads: downloads,
		Counts:    states.Counts(),
	})
}

// HandleGetDownload returns the state of one track, verifying its durable file first.
func (h *Handler) HandleGetDownload(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		id  = chi.URLParam(r, "id")
	)

	if _, err := h.orchestrator.Verify(ctx, id); err != nil {
		logger.Warnf(ctx, "Failed to verify track %s: %v", id, err)
	}

	state, ok := h.orchestrator.States().Get(id)
	if !ok {
		writeError(ctx, w, http.StatusNotFound, "download not found")

		return
	}

	writeJSON(ctx, w, http.StatusOK, state)
}

// HandleEnqueue requests downloads of the given tracks.
func (h *Handler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req enqueueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		logger.Debugf(ctx, "Failed to decode download request: %v", err)
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")

		return
	}

	tracks := h.collectTracks(r, &req)
	if len(tracks) == 0 {
		writeError(ctx, w, http.StatusBadRequest, "no tracks given")

		return
	}

	if err := h.orchestrator.EnqueueAll(ctx, tracks); err != nil {
		writeOrchestratorError(r, w, err)

		return
	}

	ids := make([]string, 0, len(tracks))
	for _, track := range tracks {
		ids = append(ids, track.ID)
	}

	writeJSON(ctx, w, http.StatusAccepted, enqueueResponse{Queued: ids})
}

// HandleCancel cancels a queued or running download, or removes a completed one.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeOrchestratorError(r, w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRetry enqueues a track known to durable storage again.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.orchestrator.Retry(r.Context(), id); err != nil {
		writeOrchestratorError(r, w, err)

		return
	}

	writeJSON(r.Context(), w, http.StatusAccepted, enqueueResponse{Queued: []string{id}})
}

// collectTracks merges both request forms; tracks without metadata are described by the catalogue.
func (h *Handler) collectTracks(r *http.Request, req *enqueueRequest) []*download.Track {
	var (
		tracks = make([]*download.Track, 0, len(req.Tracks)+len(req.IDs))
		bare   []string
	)

	for _, track := range req.Tracks {
		if track == nil || track.ID == "" {
			continue
		}

		if track.Title == "" && track.Artist == "" && track.Album == "" {
			bare = append(bare, track.ID)

			continue
		}

		tracks = append(tracks, track)
	}

	for _, id := range req.IDs {
		if id != "" {
			bare = append(bare, id)
		}
	}

	return append(tracks, download.DescribeTracks(r.Context(), h.catalog, bare)...)
}

func writeOrchestratorError(r *http.Request, w http.ResponseWriter, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, download.ErrTrackNotFound):
		writeError(ctx, w, http.StatusNotFound, err.Error())
	case errors.Is(err, download.ErrEmptyTrackID):
		writeError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, download.ErrOrchestratorClosed):
		writeError(ctx, w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Errorf(ctx, "Download request failed: %v", err)
		writeError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}
