package catalog

import (
	"io"
	"strings"
)

// UnknownArtistName is used when a track carries no artist names.
const UnknownArtistName = "Unknown Artist"

// ResolveStreamResponse represents the response structure of a stream resolution.
type ResolveStreamResponse struct {
	// Result contains the resolved stream.
	Result *StreamResolution `json:"result"`
}

// StreamResolution is a short-lived direct media URL together with its format information.
type StreamResolution struct {
	// URL is the direct media URL.
	URL string `json:"url"`
	// ExpiresInSeconds is the lifetime of URL in seconds.
	ExpiresInSeconds int64 `json:"expires_in_seconds"`
	// Format describes the encoding served at URL.
	Format StreamFormat `json:"format"`
}

// StreamFormat describes one encoding of a track.
type StreamFormat struct {
	// Tag identifies the encoding (0 means the resolver's default choice).
	Tag int `json:"tag"`
	// MimeType is the MIME type of the stream, possibly with a codecs parameter.
	MimeType string `json:"mime_type"`
	// Codecs lists the codecs of the stream.
	Codecs string `json:"codecs"`
	// Bitrate is the average bitrate in bits per second.
	Bitrate int64 `json:"bitrate"`
	// SampleRate is the audio sample rate in Hz.
	SampleRate int `json:"sample_rate"`
	// ContentLength is the size of the stream in bytes (0 if unknown).
	ContentLength int64 `json:"content_length"`
	// LoudnessDB is the integrated loudness, when the resolver reports it.
	LoudnessDB *float64 `json:"loudness_db"`
}

// Track holds display metadata of a catalogue track.
type Track struct {
	// ID is the stable track identifier.
	ID string `json:"id"`
	// Title is the track title.
	Title string `json:"title"`
	// Artists lists the performing artists.
	Artists []string `json:"artists"`
	// Album is the title of the release containing the track.
	Album string `json:"album"`
	// DurationSeconds is the track duration.
	DurationSeconds int64 `json:"duration_seconds"`
	// Year is the release year (0 if unknown).
	Year int `json:"year"`
	// ThumbnailURL is the cover image URL.
	ThumbnailURL string `json:"thumbnail_url"`
}

// ArtistName returns the joined artist names or UnknownArtistName.
func (t *Track) ArtistName() string {
	names := make([]string, 0, len(t.Artists))

	for _, a := range t.Artists {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}

	if len(names) == 0 {
		return UnknownArtistName
	}

	return strings.Join(names, ", ")
}

// FetchStreamResult holds an open ranged read of a media stream.
type FetchStreamResult struct {
	// Body is the stream body; the caller must close it.
	Body io.ReadCloser
	// Offset is the position of the first byte of Body within the stream.
	Offset int64
	// ContentLength is the number of bytes in Body (-1 if unknown).
	ContentLength int64
	// TotalBytes is the full stream size (-1 if unknown).
	TotalBytes int64
	// MimeType is the Content-Type reported by the stream host.
	MimeType string
	// StatusCode is the HTTP status of the response.
	StatusCode int
}

// FetchJSONResult holds a decoded JSON response together with its status code.
type FetchJSONResult[T any] struct {
	// Data is the decoded response (nil on failure).
	Data *T
	// StatusCode is the HTTP status of the response.
	StatusCode int
}

// graphQLTrackResponse is the data part of the getTracks GraphQL query.
type graphQLTrackResponse struct {
	// GetTracks lists the matched tracks.
	GetTracks []*graphQLTrack `json:"getTracks"`
}

// graphQLTrack is one track node of the getTracks GraphQL query.
type graphQLTrack struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Duration int64  `json:"duration"`
	Artists  []struct {
		Title string `json:"title"`
	} `json:"artists"`
	Release *struct {
		Title string `json:"title"`
		Date  string `json:"date"`
		Image *struct {
			Src string `json:"src"`
		} `json:"image"`
	} `json:"release"`
}
