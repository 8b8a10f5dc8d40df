package catalog

//go:generate $MOCKGEN -source=client.go -destination=mocks/client_mock.go

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/machinebox/graphql"

	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
	http_transport "github.com/oshokin/trackvault/internal/transport/http"
	"github.com/oshokin/trackvault/internal/utils"
)

// Client defines the interface for interacting with the catalogue and stream resolver service.
type Client interface {
	// ResolveStream obtains a short-lived direct media URL for a track.
	// A zero formatTag lets the service choose the encoding.
	ResolveStream(ctx context.Context, trackID string, formatTag int) (*StreamResolution, error)
	// GetTrack retrieves display metadata of a track.
	GetTrack(ctx context.Context, trackID string) (*Track, error)
	// FetchStream opens a ranged read of a media stream starting at offset.
	FetchStream(ctx context.Context, streamURL string, offset int64) (*FetchStreamResult, error)
}

// ClientImpl implements the Client interface.
type ClientImpl struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// baseURL is the base URL for API requests.
	baseURL string
	// apiClient is the HTTP client for bounded API calls.
	apiClient *http.Client
	// streamClient is the HTTP client for media streams; it has no overall deadline.
	streamClient *http.Client
	// graphQLClient is the GraphQL client for metadata queries.
	graphQLClient *graphql.Client
	// tracksCache caches track metadata to avoid repeated queries for the same tracks.
	tracksCache *lru.Cache[string, *Track]
}

const (
	// apiGraphQLURI is the URI path of the GraphQL endpoint.
	apiGraphQLURI = "api/v1/graphql"
	// apiStreamURI is the URI path of the stream resolution endpoint.
	apiStreamURI = "api/v1/stream"
	// authCookieName is the name of the authentication cookie.
	authCookieName = "auth"
	// authHeaderName carries the token on GraphQL requests.
	authHeaderName = "X-Auth-Token"
)

// getTrackQuery fetches display metadata of one track.
const getTrackQuery = `
	query getTrack($id: ID!) {
		getTracks(ids: [$id]) {
			id
			title
			duration
			artists { title }
			release {
				title
				date
				image { src }
			}
		}
	}
`

// NewClient creates and returns a new instance of ClientImpl.
func NewClient(cfg *config.Config) (Client, error) {
	cookies, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	baseURL, err := url.Parse(cfg.ResolverBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid resolver URL: %w", err)
	}

	if cfg.AuthToken != "" {
		cookies.SetCookies(baseURL, []*http.Cookie{{
			Name:  authCookieName,
			Value: cfg.AuthToken,
		}})
	}

	defaultHeaders := http.Header{}
	if cfg.Referer != "" {
		defaultHeaders.Set("Referer", cfg.Referer)
	}

	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("unexpected default transport type %T", http.DefaultTransport)
	}

	streamTransport := baseTransport.Clone()
	streamTransport.DialContext = (&net.Dialer{Timeout: http_transport.DefaultConnectTimeout}).DialContext
	streamTransport.ResponseHeaderTimeout = cfg.ParsedHTTPTimeout

	var (
		userAgents = utils.NewUserAgentProvider(cfg.UserAgents, http_transport.DefaultUserAgent)
		transport  = http_transport.NewHeaderInjector(
			http_transport.NewLogTransport(streamTransport, 0),
			userAgents,
			defaultHeaders)
	)

	apiClient := &http.Client{
		Transport: transport,
		Jar:       cookies,
		Timeout:   cfg.ParsedHTTPTimeout,
	}

	streamClient := &http.Client{
		Transport: transport,
		Jar:       cookies,
	}

	graphQLURL := baseURL.JoinPath(apiGraphQLURI)
	graphQLClient := graphql.NewClient(graphQLURL.String(), graphql.WithHTTPClient(apiClient))

	tracksCache, err := lru.New[string, *Track](cfg.TrackCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracks cache: %w", err)
	}

	return &ClientImpl{
		cfg:           cfg,
		baseURL:       baseURL.String(),
		apiClient:     apiClient,
		streamClient:  streamClient,
		graphQLClient: graphQLClient,
		tracksCache:   tracksCache,
	}, nil
}

// ResolveStream obtains a short-lived direct media URL for a track.
func (c *ClientImpl) ResolveStream(ctx context.Context, trackID string, formatTag int) (*StreamResolution, error) {
	if trackID == "" {
		return nil, ErrEmptyTrackID
	}

	query := url.Values{}
	query.Set("id", trackID)

	if formatTag > 0 {
		query.Set("format", strconv.Itoa(formatTag))
	}

	fetchResult, err := fetchJSONWithQuery[ResolveStreamResponse](c, ctx, apiStreamURI, query)
	if err != nil {
		if fetchResult != nil && isUnavailableStatus(fetchResult.StatusCode) {
			return nil, &HTTPError{
				Operation:  "resolve stream",
				StatusCode: fetchResult.StatusCode,
				Err:        ErrStreamUnavailable,
			}
		}

		return nil, fmt.Errorf("failed to resolve stream: %w", err)
	}

	result := fetchResult.Data.Result
	if result == nil || strings.TrimSpace(result.URL) == "" {
		return nil, fmt.Errorf("%w: resolver returned no URL for track %s", ErrStreamUnavailable, trackID)
	}

	return result, nil
}

// GetTrack retrieves display metadata of a track.
// Uses an LRU cache to avoid redundant queries for the same tracks.
func (c *ClientImpl) GetTrack(ctx context.Context, trackID string) (*Track, error) {
	if trackID == "" {
		return nil, ErrEmptyTrackID
	}

	if cached, ok := c.tracksCache.Get(trackID); ok {
		logger.Debugf(ctx, "Track cache hit for ID: %s", trackID)

		return cached, nil
	}

	graphQLRequest := graphql.NewRequest(getTrackQuery)
	graphQLRequest.Var("id", trackID)

	if c.cfg.AuthToken != "" {
		graphQLRequest.Header.Set(authHeaderName, c.cfg.AuthToken)
	}

	var response graphQLTrackResponse
	if err := c.graphQLClient.Run(ctx, graphQLRequest, &response); err != nil {
		return nil, fmt.Errorf("failed to query track %s: %w", trackID, err)
	}

	if len(response.GetTracks) == 0 || response.GetTracks[0] == nil {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}

	track := convertGraphQLTrack(trackID, response.GetTracks[0])
	c.tracksCache.Add(trackID, track)

	return track, nil
}

// FetchStream opens a ranged read of a media stream starting at offset.
func (c *ClientImpl) FetchStream(ctx context.Context, streamURL string, offset int64) (*FetchStreamResult, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	// Always send a Range header: stream hosts throttle plain GETs.
	request.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")

	response, err := c.streamClient.Do(request)
	if err != nil {
		return nil, err
	}

	switch response.StatusCode {
	case http.StatusOK:
		return &FetchStreamResult{
			Body:          response.Body,
			Offset:        0,
			ContentLength: response.ContentLength,
			TotalBytes:    response.ContentLength,
			MimeType:      response.Header.Get("Content-Type"),
			StatusCode:    response.StatusCode,
		}, nil
	case http.StatusPartialContent:
		start, total := parseContentRange(response.Header.Get("Content-Range"))
		if start < 0 {
			start = offset
		}

		return &FetchStreamResult{
			Body:          response.Body,
			Offset:        start,
			ContentLength: response.ContentLength,
			TotalBytes:    total,
			MimeType:      response.Header.Get("Content-Type"),
			StatusCode:    response.StatusCode,
		}, nil
	case http.StatusRequestedRangeNotSatisfiable:
		response.Body.Close() //nolint:errcheck,gosec // Error on close is not critical here.

		return nil, &HTTPError{
			Operation:  "fetch stream",
			StatusCode: response.StatusCode,
			Err:        ErrRangeNotSatisfiable,
		}
	default:
		response.Body.Close() //nolint:errcheck,gosec // Error on close is not critical here.

		return nil, &HTTPError{
			Operation:  "fetch stream",
			StatusCode: response.StatusCode,
			Err:        ErrUnexpectedHTTPStatus,
		}
	}
}

func convertGraphQLTrack(trackID string, node *graphQLTrack) *Track {
	track := &Track{
		ID:              node.ID,
		Title:           node.Title,
		DurationSeconds: node.Duration,
	}

	if track.ID == "" {
		track.ID = trackID
	}

	for _, artist := range node.Artists {
		track.Artists = append(track.Artists, artist.Title)
	}

	if node.Release != nil {
		track.Album = node.Release.Title
		track.Year = parseYear(node.Release.Date)

		if node.Release.Image != nil {
			track.ThumbnailURL = node.Release.Image.Src
		}
	}

	return track
}

// parseYear extracts the leading year of a date such as "2021-03-04".
func parseYear(date string) int {
	const yearLength = 4

	if len(date) < yearLength {
		return 0
	}

	year, err := strconv.Atoi(date[:yearLength])
	if err != nil {
		return 0
	}

	return year
}

// parseContentRange parses "bytes start-end/total"; unknown parts are returned as -1.
func parseContentRange(header string) (int64, int64) {
	spec, found := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !found {
		return -1, -1
	}

	rangePart, totalPart, found := strings.Cut(spec, "/")
	if !found {
		return -1, -1
	}

	total, err := strconv.ParseInt(totalPart, 10, 64)
	if err != nil {
		total = -1
	}

	startPart, _, found := strings.Cut(rangePart, "-")
	if !found {
		return -1, total
	}

	start, err := strconv.ParseInt(startPart, 10, 64)
	if err != nil {
		return -1, total
	}

	return start, total
}

func isUnavailableStatus(statusCode int) bool {
	return statusCode == http.StatusNotFound ||
		statusCode == http.StatusGone ||
		statusCode == http.StatusUnavailableForLegalReasons
}

// fetchJSONWithQuery fetches JSON from the specified URI with the specified query.
//
//nolint:revive // Has no sense, it's cause Go doesn't allow struct methods to be generic.
func fetchJSONWithQuery[T any](
	c *ClientImpl,
	ctx context.Context,
	uri string,
	query url.Values,
) (*FetchJSONResult[T], error) {
	route, err := url.JoinPath(c.baseURL, uri)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, route, http.NoBody)
	if err != nil {
		return nil, err
	}

	if query != nil {
		request.URL.RawQuery = query.Encode()
	}

	response, err := c.apiClient.Do(request)
	if err != nil {
		return nil, err
	}

	defer response.Body.Close() //nolint:errcheck // Error on close is not critical here.

	if response.StatusCode != http.StatusOK {
		return &FetchJSONResult[T]{
			Data:       nil,
			StatusCode: response.StatusCode,
		}, fmt.Errorf("%w: %d", ErrUnexpectedHTTPStatus, response.StatusCode)
	}

	var result T
	if err = json.NewDecoder(response.Body).Decode(&result); err != nil {
		return &FetchJSONResult[T]{
			Data:       nil,
			StatusCode: response.StatusCode,
		}, err
	}

	return &FetchJSONResult[T]{
		Data:       &result,
		StatusCode: response.StatusCode,
	}, nil
}
