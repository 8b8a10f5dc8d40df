package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/service/stream"
)

const (
	rangeUnitPrefix    = "bytes="
	defaultContentType = "application/octet-stream"
)

// ErrMalformedRange indicates a Range header that is not a single "bytes=start-[end]" range.
var ErrMalformedRange = errors.New("malformed range header")

// HandleStream proxies a byte range of a track, serving cached spans locally.
// The "format" query parameter pins an encoding.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	var (
		ctx         = r.Context()
		id          = chi.URLParam(r, "id")
		rangeHeader = r.Header.Get("Range")
	)

	formatOverride, err := parseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid format")

		return
	}

	offset, length, err := parseRange(rangeHeader)
	if err != nil {
		writeError(ctx, w, http.StatusRequestedRangeNotSatisfiable, err.Error())

		return
	}

	reader, err := h.streams.OpenRange(ctx, &stream.DataRequest{
		TrackID:        id,
		Offset:         offset,
		Length:         length,
		FormatOverride: formatOverride,
	})
	if err != nil {
		writeStreamError(r, w, err)

		return
	}

	defer reader.Close() //nolint:errcheck // Error on close is not critical here.

	size := servedSize(reader, length)

	contentType := reader.MimeType
	if contentType == "" {
		contentType = defaultContentType
	}

	header := w.Header()
	header.Set("Content-Type", contentType)
	header.Set("Accept-Ranges", "bytes")

	status := http.StatusOK

	if rangeHeader != "" && size > 0 {
		total := "*"
		if reader.TotalBytes > 0 {
			total = strconv.FormatInt(reader.TotalBytes, 10)
		}

		status = http.StatusPartialContent
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%s", reader.Offset, reader.Offset+size-1, total))
	}

	if size > 0 {
		header.Set("Content-Length", strconv.FormatInt(size, 10))
	}

	w.WriteHeader(status)

	written, err := io.Copy(w, reader)
	if err != nil {
		logger.Debugf(ctx, "Playback of track %s stopped after %s: %v",
			id, humanize.Bytes(uint64(written)), err) //nolint:gosec // Never negative.
	}
}

// servedSize returns the number of bytes the response carries, or 0 if unknown.
func servedSize(reader *stream.RangeReader, length int64) int64 {
	remaining := int64(0)
	if reader.TotalBytes > 0 {
		remaining = max(reader.TotalBytes-reader.Offset, 0)
	}

	switch {
	case length > 0 && remaining > 0:
		return min(length, remaining)
	case length > 0:
		return length
	default:
		return remaining
	}
}

func writeStreamError(r *http.Request, w http.ResponseWriter, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, stream.ErrInvalidRange):
		writeError(ctx, w, http.StatusRequestedRangeNotSatisfiable, err.Error())
	case errors.Is(err, stream.ErrEmptyTrackID):
		writeError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, stream.ErrStreamUnavailable):
		logger.Warnf(ctx, "Stream unavailable: %v", err)
		writeError(ctx, w, http.StatusServiceUnavailable, "stream unavailable")
	default:
		logger.Errorf(ctx, "Failed to open stream: %v", err)
		writeError(ctx, w, http.StatusBadGateway, "upstream failure")
	}
}

// parseFormat reads the format override; an empty value means no override.
func parseFormat(value string) (int, error) {
	if value == "" {
		return 0, nil
	}

	tag, err := strconv.Atoi(value)
	if err != nil || tag < 0 {
		return 0, fmt.Errorf("invalid format %q", value)
	}

	return tag, nil
}

// parseRange reads a single "bytes=start-[end]" range. An empty header means the whole stream.
// Suffix ranges are not supported because the total size may be unknown.
func parseRange(header string) (int64, int64, error) {
	if header == "" {
		return 0, 0, nil
	}

	spec, ok := strings.CutPrefix(strings.TrimSpace(header), rangeUnitPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	// Only the first range of a multi-range request is served.
	spec, _, _ = strings.Cut(spec, ",")

	startText, endText, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok || startText == "" {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	start, err := strconv.ParseInt(startText, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	if endText == "" {
		return start, 0, nil
	}

	end, err := strconv.ParseInt(endText, 10, 64)
	if err != nil || end < start {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	return start, end - start + 1, nil
}
