package stream

//go:generate $MOCKGEN -source=interceptor.go -destination=mocks/interceptor_mock.go

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oshokin/trackvault/internal/client/catalog"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/storage"
	"github.com/oshokin/trackvault/internal/telemetry"
)

// Interceptor sits on the media loading path and decides where the bytes of a track come from.
type Interceptor interface {
	// Open serves one byte-range request from the local cache or a resolved URL.
	Open(ctx context.Context, req *DataRequest) (*DataSpec, error)
	// Resolve returns a live stream URL of a track, resolving it when the cache has none.
	Resolve(ctx context.Context, trackID string, formatOverride int) (*ResolvedStream, error)
	// Invalidate drops the cached URL and every locally cached byte of a track.
	Invalidate(ctx context.Context, trackID string)
	// SetFormatOverride pins an encoding for later requests of a track.
	SetFormatOverride(ctx context.Context, trackID string, formatTag int)
	// ClearFormatOverride removes the pinned encoding of a track.
	ClearFormatOverride(ctx context.Context, trackID string)
}

// InterceptorImpl implements the Interceptor interface.
type InterceptorImpl struct {
	// client resolves stream URLs and track metadata.
	client catalog.Client
	// cache holds resolved URLs until they expire.
	cache *ResolutionCache
	// ranges is the local byte-range cache (optional).
	ranges *ByteRangeCache
	// store persists format and track records (optional).
	store storage.CatalogStore
	// telemetry records resolution outcomes (optional).
	telemetry *telemetry.Telemetry
	// resolveTimeout bounds one resolution.
	resolveTimeout time.Duration
	// group coalesces concurrent resolutions of the same track and format.
	group singleflight.Group
	// mu guards pinned.
	mu sync.Mutex
	// pinned maps a track id to its pinned format tag.
	pinned map[string]int
}

// InterceptorOptions holds the collaborators of an interceptor.
type InterceptorOptions struct {
	// Client resolves stream URLs and track metadata.
	Client catalog.Client
	// Cache holds resolved URLs until they expire.
	Cache *ResolutionCache
	// Ranges is the local byte-range cache; nil disables local serving.
	Ranges *ByteRangeCache
	// Store persists format and track records; nil disables persistence.
	Store storage.CatalogStore
	// Telemetry records resolution outcomes.
	Telemetry *telemetry.Telemetry
	// ResolveTimeout bounds one resolution; zero means DefaultResolveTimeout.
	ResolveTimeout time.Duration
}

const (
	// DefaultResolveTimeout bounds one resolution when no timeout is configured.
	DefaultResolveTimeout = 15 * time.Second
	// DefaultResolutionTTL is used when the resolver reports no URL lifetime.
	DefaultResolutionTTL = 5 * time.Minute

	resolutionLocal    = "local"
	resolutionCached   = "cached"
	resolutionResolved = "resolved"
	resolutionError    = "error"
)

// NewInterceptor creates a new interceptor.
func NewInterceptor(opts *InterceptorOptions) Interceptor {
	timeout := opts.ResolveTimeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}

	return &InterceptorImpl{
		client:         opts.Client,
		cache:          opts.Cache,
		ranges:         opts.Ranges,
		store:          opts.Store,
		telemetry:      opts.Telemetry,
		resolveTimeout: timeout,
		pinned:         make(map[string]int),
	}
}

// Open serves one byte-range request from the local cache or a resolved URL.
func (i *InterceptorImpl) Open(ctx context.Context, req *DataRequest) (*DataSpec, error) {
	if req == nil || req.TrackID == "" {
		return nil, ErrEmptyTrackID
	}

	if req.Offset < 0 {
		return nil, ErrInvalidRange
	}

	override := i.applyOverride(ctx, req.TrackID, req.FormatOverride)

	if override == 0 && i.ranges != nil && i.ranges.IsCached(req.TrackID, req.Offset, req.Length) {
		i.telemetry.RecordResolution(resolutionLocal)

		return &DataSpec{
			TrackID: req.TrackID,
			Local:   true,
			Offset:  req.Offset,
			Length:  req.Length,
		}, nil
	}

	stream, err := i.Resolve(ctx, req.TrackID, override)
	if err != nil {
		return nil, err
	}

	return &DataSpec{
		TrackID:        req.TrackID,
		URL:            stream.URL,
		Offset:         req.Offset,
		Length:         req.Length,
		FormatTag:      stream.Format.Tag,
		FormatOverride: override,
		MimeType:       stream.Format.MimeType,
	}, nil
}

// Resolve returns a live stream URL of a track, resolving it when the cache has none.
// A non-zero formatOverride never reuses an entry resolved for another format.
func (i *InterceptorImpl) Resolve(ctx context.Context, trackID string, formatOverride int) (*ResolvedStream, error) {
	if trackID == "" {
		return nil, ErrEmptyTrackID
	}

	if formatOverride != 0 {
		if previous, ok := i.cache.Peek(trackID); ok && previous.FormatTag != formatOverride {
			logger.Debugf(ctx, "Format of track %s changed from %d to %d, dropping cached stream",
				trackID, previous.FormatTag, formatOverride)
			i.Invalidate(ctx, trackID)
		}
	}

	if stream, ok := i.cache.Get(trackID); ok && (formatOverride == 0 || stream.FormatTag == formatOverride) {
		i.telemetry.RecordResolution(resolutionCached)

		return stream, nil
	}

	return i.resolve(ctx, trackID, formatOverride)
}

// Invalidate drops the cached URL and every locally cached byte of a track.
func (i *InterceptorImpl) Invalidate(ctx context.Context, trackID string) {
	if err := i.cache.Invalidate(trackID); err != nil {
		logger.Warnf(ctx, "Failed to drop cached bytes of track %s: %v", trackID, err)
	}
}

// SetFormatOverride pins an encoding for later requests of a track.
func (i *InterceptorImpl) SetFormatOverride(ctx context.Context, trackID string, formatTag int) {
	i.applyOverride(ctx, trackID, formatTag)
}

// ClearFormatOverride removes the pinned encoding of a track.
func (i *InterceptorImpl) ClearFormatOverride(ctx context.Context, trackID string) {
	i.mu.Lock()
	_, pinned := i.pinned[trackID]
	delete(i.pinned, trackID)
	i.mu.Unlock()

	if pinned {
		i.Invalidate(ctx, trackID)
	}
}

// applyOverride pins a requested override and returns the override in effect for the track.
// Pinning a different format invalidates everything cached for the track.
func (i *InterceptorImpl) applyOverride(ctx context.Context, trackID string, requested int) int {
	i.mu.Lock()

	current := i.pinned[trackID]
	if requested == 0 || requested == current {
		i.mu.Unlock()

		return current
	}

	i.pinned[trackID] = requested
	i.mu.Unlock()

	i.Invalidate(ctx, trackID)

	return requested
}

func (i *InterceptorImpl) resolve(ctx context.Context, trackID string, formatOverride int) (*ResolvedStream, error) {
	key := trackID + ":" + strconv.Itoa(formatOverride)

	// The resolution outlives an abandoned caller so that its result still lands in the cache.
	results := i.group.DoChan(key, func() (any, error) {
		resolveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.resolveTimeout)
		defer cancel()

		return i.resolveAndRecord(resolveCtx, trackID, formatOverride)
	})

	timer := time.NewTimer(i.resolveTimeout)
	defer timer.Stop()

	select {
	case result := <-results:
		if result.Err != nil {
			i.telemetry.RecordResolution(resolutionError)
			logger.Warnf(ctx, "Failed to resolve stream of track %s: %v", trackID, result.Err)

			return nil, fmt.Errorf("%w: %w", ErrStreamUnavailable, result.Err)
		}

		stream, ok := result.Val.(*ResolvedStream)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected resolution result %T", ErrStreamUnavailable, result.Val)
		}

		copied := *stream

		return &copied, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrStreamUnavailable, ctx.Err())
	case <-timer.C:
		i.telemetry.RecordResolution(resolutionError)
		logger.Warnf(ctx, "Resolution of track %s timed out after %s", trackID, i.resolveTimeout)

		return nil, fmt.Errorf("%w: resolution timed out after %s", ErrStreamUnavailable, i.resolveTimeout)
	}
}

func (i *InterceptorImpl) resolveAndRecord(
	ctx context.Context,
	trackID string,
	formatOverride int,
) (*ResolvedStream, error) {
	resolution, err := i.client.ResolveStream(ctx, trackID, formatOverride)
	if err != nil {
		return nil, err
	}

	if resolution == nil || resolution.URL == "" {
		return nil, catalog.ErrStreamUnavailable
	}

	ttl := time.Duration(resolution.ExpiresInSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultResolutionTTL
	}

	now := i.cache.now()
	stream := &ResolvedStream{
		TrackID:   trackID,
		URL:       resolution.URL,
		ExpiresAt: now.Add(ttl),
		FormatTag: formatOverride,
		Format:    resolution.Format,
	}

	i.cache.Put(stream)

	if i.ranges != nil {
		i.ranges.SetTotal(trackID, resolution.Format.ContentLength)
	}

	i.telemetry.RecordResolution(resolutionResolved)
	i.persist(ctx, stream, now)

	return stream, nil
}

// persist records the resolved format and the first access of a track.
// Storage failures never fail a resolution.
func (i *InterceptorImpl) persist(ctx context.Context, stream *ResolvedStream, now time.Time) {
	if i.store == nil {
		return
	}

	format := &storage.FormatRecord{
		TrackID:       stream.TrackID,
		Tag:           stream.Format.Tag,
		MimeType:      stream.Format.MimeType,
		Codecs:        stream.Format.Codecs,
		Bitrate:       stream.Format.Bitrate,
		SampleRate:    stream.Format.SampleRate,
		ContentLength: stream.Format.ContentLength,
		LoudnessDB:    stream.Format.LoudnessDB,
		PlaybackURL:   stream.URL,
		UpdatedAt:     now,
	}

	if err := i.store.UpsertFormat(ctx, format); err != nil {
		logger.Warnf(ctx, "Failed to save format of track %s: %v", stream.TrackID, err)
	}

	record, err := i.store.GetTrack(ctx, stream.TrackID)
	if err != nil {
		logger.Warnf(ctx, "Failed to read track %s: %v", stream.TrackID, err)

		return
	}

	if record == nil {
		if err = i.store.UpsertTrack(ctx, i.describeTrack(ctx, stream.TrackID)); err != nil {
			logger.Warnf(ctx, "Failed to save track %s: %v", stream.TrackID, err)

			return
		}
	} else if record.FirstAccessedAt != nil {
		return
	}

	if err = i.store.StampFirstAccess(ctx, stream.TrackID, now); err != nil {
		logger.Warnf(ctx, "Failed to stamp first access of track %s: %v", stream.TrackID, err)
	}
}

// describeTrack builds a minimal catalogue record, falling back to the bare id
// when the catalogue has no metadata.
func (i *InterceptorImpl) describeTrack(ctx context.Context, trackID string) *storage.TrackRecord {
	record := &storage.TrackRecord{ID: trackID}

	track, err := i.client.GetTrack(ctx, trackID)
	if err != nil {
		if !errors.Is(err, catalog.ErrTrackNotFound) {
			logger.Debugf(ctx, "Failed to fetch metadata of track %s: %v", trackID, err)
		}

		return record
	}

	record.Title = track.Title
	record.Artist = track.ArtistName()
	record.Album = track.Album
	record.DurationSeconds = track.DurationSeconds
	record.Year = track.Year
	record.ThumbnailURL = track.ThumbnailURL

	return record
}
