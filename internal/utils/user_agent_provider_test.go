package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewSimpleUserAgentProvider tests the NewSimpleUserAgentProvider function.
func TestNewSimpleUserAgentProvider(t *testing.T) {
	t.Parallel()

	provider := NewSimpleUserAgentProvider("TestAgent/1.0")

	assert.Implements(t, (*UserAgentProvider)(nil), provider)
	assert.Equal(t, "TestAgent/1.0", provider.GetUserAgent())
}

// TestNewUserAgentProvider tests provider selection based on the configured list.
func TestNewUserAgentProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		userAgents []string
		expected   []string
	}{
		{
			name:       "empty list uses fallback",
			userAgents: nil,
			expected:   []string{"Fallback/1.0", "Fallback/1.0"},
		},
		{
			name:       "blank entries are ignored",
			userAgents: []string{"", "Only/1.0", ""},
			expected:   []string{"Only/1.0", "Only/1.0"},
		},
		{
			name:       "several entries rotate",
			userAgents: []string{"A/1.0", "B/1.0"},
			expected:   []string{"A/1.0", "B/1.0", "A/1.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := NewUserAgentProvider(tt.userAgents, "Fallback/1.0")

			for i, expected := range tt.expected {
				assert.Equal(t, expected, provider.GetUserAgent(), "call %d", i)
			}
		})
	}
}
