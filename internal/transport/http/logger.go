package http

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/oshokin/trackvault/internal/config"
	"github.com/oshokin/trackvault/internal/logger"
	"github.com/oshokin/trackvault/internal/utils"
)

// LogTransport is a custom http.RoundTripper that logs HTTP requests and responses at debug level.
// Signed stream URLs carry credentials in their query, so sensitive parameters are redacted
// and binary media bodies are never dumped.
type LogTransport struct {
	// next is the underlying HTTP round tripper.
	next http.RoundTripper
	// maxLogLength is the maximum length of logged request/response data.
	maxLogLength uint64
}

// redactedValue replaces the value of sensitive query parameters.
const redactedValue = "REDACTED"

var (
	// ErrNilRequest indicates that the HTTP request is nil.
	ErrNilRequest = errors.New("request is nil")

	// sensitiveQueryParams lists query parameters whose values must not reach the logs.
	//nolint:gochecknoglobals // Immutable lookup table.
	sensitiveQueryParams = map[string]struct{}{
		"sig":       {},
		"signature": {},
		"token":     {},
		"key":       {},
		"expire":    {},
		"lsig":      {},
		"auth":      {},
	}
)

// NewLogTransport creates and returns a new instance of LogTransport.
// If maxLogLength is 0, it defaults to config.DefaultMaxLogLength.
func NewLogTransport(next http.RoundTripper, maxLogLength uint64) http.RoundTripper {
	if maxLogLength == 0 {
		maxLogLength = config.DefaultMaxLogLength
	}

	return &LogTransport{
		next:         next,
		maxLogLength: maxLogLength,
	}
}

// RoundTrip executes a single HTTP transaction and logs the request and response.
func (t *LogTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	if !logger.IsDebugLevel() {
		return t.next.RoundTrip(req)
	}

	var (
		ctx         = req.Context()
		redacted    = RedactURL(req.URL)
		requestDump = t.dumpRequest(req)
		startTime   = time.Now()
	)

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(startTime)

	if err != nil {
		logger.Debugf(ctx, "Request failed: %s %s | Error: %v", req.Method, redacted, err)

		return nil, err
	}

	responseDump := t.dumpResponse(resp)

	logger.Debugf(ctx, "%s %s [%d] %s\nRequest: %s\nResponse: %s",
		req.Method, redacted, resp.StatusCode, duration, requestDump, responseDump)

	return resp, nil
}

// RedactURL returns the URL as a string with sensitive query values replaced.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	if u.RawQuery == "" {
		return u.String()
	}

	clone := *u
	clone.RawQuery = redactQuery(u.RawQuery)

	return clone.String()
}

func redactQuery(rawQuery string) string {
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return redactedValue
	}

	for key := range query {
		if _, ok := sensitiveQueryParams[strings.ToLower(key)]; ok {
			query.Set(key, redactedValue)
		}
	}

	return query.Encode()
}

func (t *LogTransport) dumpRequest(req *http.Request) string {
	// Only textual request bodies are dumped.
	dump, err := httputil.DumpRequestOut(req, utils.IsTextContentType(req.Header.Get("Content-Type")))
	if err != nil {
		return err.Error()
	}

	text := string(dump)
	if req.URL.RawQuery != "" {
		text = strings.Replace(text, req.URL.RawQuery, redactQuery(req.URL.RawQuery), 1)
	}

	return t.truncate(text)
}

func (t *LogTransport) dumpResponse(resp *http.Response) string {
	contentType := resp.Header.Get("Content-Type")

	dump, err := httputil.DumpResponse(resp, utils.IsTextContentType(contentType))
	if err != nil {
		return err.Error()
	}

	return t.truncate(string(dump))
}

func (t *LogTransport) truncate(data string) string {
	if uint64(len(data)) > t.maxLogLength {
		return data[:t.maxLogLength] + "... [truncated]"
	}

	return data
}
