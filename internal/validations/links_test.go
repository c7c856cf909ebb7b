package validations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsURLValid(t *testing.T) {
	assert.True(t, IsURLValid("https://example.com/a"))
	assert.True(t, IsURLValid("http://example.com"))
	assert.False(t, IsURLValid(""))
	assert.False(t, IsURLValid("ftp://example.com"))
	assert.False(t, IsURLValid("example.com/no-scheme"))
	assert.False(t, IsURLValid("https://"))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips utm params", "https://example.com/a?utm_source=x&utm_medium=y&q=1", "https://example.com/a?q=1"},
		{"strips fbclid", "https://example.com/a?fbclid=abc", "https://example.com/a"},
		{"keeps regular params", "https://example.com/a?id=42", "https://example.com/a?id=42"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"drops default https port", "https://example.com:443/a", "https://example.com/a"},
		{"drops default http port", "http://example.com:80/a", "http://example.com/a"},
		{"drops bare trailing slash", "https://example.com/", "https://example.com"},
		{"keeps path trailing slash", "https://example.com/a/", "https://example.com/a/"},
		{"trims whitespace", "  https://example.com/a  ", "https://example.com/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURLRejectsNonHTTP(t *testing.T) {
	_, err := NormalizeURL("ftp://example.com/a")
	require.Error(t, err)
	_, err = NormalizeURL("not a url")
	require.Error(t, err)
}

func TestExtractHostname(t *testing.T) {
	assert.Equal(t, "example.com", ExtractHostname("https://example.com/a/b"))
	assert.Equal(t, "example.com", ExtractHostname("https://example.com:8443/a"))
}
