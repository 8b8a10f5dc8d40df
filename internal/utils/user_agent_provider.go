package utils

//go:generate $MOCKGEN -source=user_agent_provider.go -destination=mocks/user_agent_provider_mock.go

import "sync/atomic"

// UserAgentProvider is an interface that defines a method for retrieving a User-Agent string.
type UserAgentProvider interface {
	// GetUserAgent returns a User-Agent string.
	GetUserAgent() string
}

// SimpleUserAgentProvider provides a static User-Agent string that is set during initialization.
type SimpleUserAgentProvider struct {
	// userAgent is the User-Agent string to return.
	userAgent string
}

// RotatingUserAgentProvider cycles through a fixed list of User-Agent strings.
// Signed stream URLs are often bound to a client family, so the list is expected
// to contain agents of the same family.
type RotatingUserAgentProvider struct {
	// userAgents is the list of User-Agent strings to rotate through.
	userAgents []string
	// next is the index of the next User-Agent to return.
	next atomic.Uint64
}

// NewSimpleUserAgentProvider creates and returns a new instance of SimpleUserAgentProvider.
func NewSimpleUserAgentProvider(userAgent string) UserAgentProvider {
	return &SimpleUserAgentProvider{userAgent: userAgent}
}

// NewUserAgentProvider returns a provider for the given list.
// A single entry yields a static provider; an empty list yields fallback.
func NewUserAgentProvider(userAgents []string, fallback string) UserAgentProvider {
	filtered := make([]string, 0, len(userAgents))

	for _, ua := range userAgents {
		if ua != "" {
			filtered = append(filtered, ua)
		}
	}

	switch len(filtered) {
	case 0:
		return NewSimpleUserAgentProvider(fallback)
	case 1:
		return NewSimpleUserAgentProvider(filtered[0])
	default:
		return &RotatingUserAgentProvider{userAgents: filtered}
	}
}

// GetUserAgent returns a User-Agent string.
func (p *SimpleUserAgentProvider) GetUserAgent() string {
	return p.userAgent
}

// GetUserAgent returns the next User-Agent string in the list.
func (p *RotatingUserAgentProvider) GetUserAgent() string {
	idx := p.next.Add(1) - 1

	return p.userAgents[idx%uint64(len(p.userAgents))]
}
