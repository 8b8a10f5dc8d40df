package http

import (
	"net/http"

	"github.com/oshokin/trackvault/internal/utils"
)

// HeaderInjector is a custom http.RoundTripper that fills in client identification headers.
// Stream hosts reject ranged media requests without a browser-like User-Agent and a Referer,
// so missing headers are added; headers already present on the request are left untouched.
type HeaderInjector struct {
	// next is the underlying HTTP round tripper.
	next http.RoundTripper
	// userAgentProvider provides the User-Agent string to inject.
	userAgentProvider utils.UserAgentProvider
	// defaults holds static headers applied when absent from the request.
	defaults http.Header
}

// userAgentHeader is the HTTP header name for User-Agent.
const userAgentHeader = "User-Agent"

// NewHeaderInjector creates and returns a new instance of HeaderInjector.
// The defaults header set may be nil.
func NewHeaderInjector(
	next http.RoundTripper,
	userAgentProvider utils.UserAgentProvider,
	defaults http.Header,
) http.RoundTripper {
	return &HeaderInjector{
		next:              next,
		userAgentProvider: userAgentProvider,
		defaults:          defaults.Clone(),
	}
}

// RoundTrip executes a single HTTP transaction after adding the missing headers.
// The request is cloned before modification, as required by the http.RoundTripper contract.
func (t *HeaderInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	var clone *http.Request

	ensureClone := func() {
		if clone == nil {
			clone = req.Clone(req.Context())
		}
	}

	if req.Header.Get(userAgentHeader) == "" {
		ensureClone()
		clone.Header.Set(userAgentHeader, t.userAgentProvider.GetUserAgent())
	}

	for name, values := range t.defaults {
		if req.Header.Get(name) != "" || len(values) == 0 {
			continue
		}

		ensureClone()
		clone.Header.Set(name, values[0])
	}

	if clone == nil {
		return t.next.RoundTrip(req)
	}

	return t.next.RoundTrip(clone)
}
