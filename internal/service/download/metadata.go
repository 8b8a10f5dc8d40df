package download

import (
	"context"
	"errors"

	"github.com/oshokin/trackvault/internal/client/catalog"
	"github.com/oshokin/trackvault/internal/logger"
)

// DescribeTracks builds download requests for bare ids, filling in catalogue metadata.
// A track the catalogue cannot describe is requested by id alone.
func DescribeTracks(ctx context.Context, client catalog.Client, trackIDs []string) []*Track {
	tracks := make([]*Track, 0, len(trackIDs))

	for _, id := range trackIDs {
		tracks = append(tracks, describeTrack(ctx, client, id))
	}

	return tracks
}

func describeTrack(ctx context.Context, client catalog.Client, trackID string) *Track {
	track := &Track{ID: trackID}

	if client == nil {
		return track
	}

	metadata, err := client.GetTrack(ctx, trackID)
	if err != nil {
		if !errors.Is(err, catalog.ErrTrackNotFound) {
			logger.Warnf(ctx, "Failed to fetch metadata of track %s: %v", trackID, err)
		}

		return track
	}

	track.Title = metadata.Title
	track.Artist = metadata.ArtistName()
	track.Album = metadata.Album
	track.Year = metadata.Year
	track.DurationSeconds = metadata.DurationSeconds
	track.ThumbnailURL = metadata.ThumbnailURL

	return track
}
