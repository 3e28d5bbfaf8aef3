package allowlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	t.Parallel()

	m := New([]string{"example.com", "*.mysite.org"})

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "exact host", url: "http://example.com", want: true},
		{name: "bare domain rejects subdomain", url: "http://sub.example.com/path", want: false},
		{name: "wildcard matches subdomain", url: "http://sub.mysite.org", want: true},
		{name: "wildcard matches apex", url: "https://mysite.org/page", want: true},
		{name: "port is ignored", url: "http://example.com:8080", want: true},
		{name: "not a url", url: "notaurl", want: false},
		{name: "unlisted host", url: "https://other.net", want: false},
		{name: "deep subdomain under wildcard", url: "https://a.b.mysite.org/x?y=1", want: true},
		{name: "suffix lookalike", url: "https://evilmysite.org", want: false},
		{name: "case insensitive host", url: "http://EXAMPLE.com", want: true},
		{name: "empty string", url: "", want: false},
		{name: "scheme only", url: "https://", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, m.Allowed(tt.url), "url %q", tt.url)
		})
	}
}

func TestAllowedNoPatterns(t *testing.T) {
	t.Parallel()

	for _, m := range []*Matcher{nil, New(nil), New([]string{"", "  "})} {
		assert.True(t, m.Allowed("https://anything.example/path"))
		assert.True(t, m.Allowed("http://localhost:3000"))
		assert.False(t, m.Allowed("notaurl"))
		assert.False(t, m.Allowed("/relative/path"))
	}
}

func TestNewNormalizesPatterns(t *testing.T) {
	t.Parallel()

	m := New([]string{" Example.COM ", "", "*.MySite.org"})
	assert.Equal(t, []string{"example.com", "*.mysite.org"}, m.Patterns())
}

func TestForURL(t *testing.T) {
	t.Parallel()

	m, err := ForURL("https://app.example.com:8443/dashboard")
	require.NoError(t, err)
	assert.True(t, m.Allowed("https://app.example.com/settings"))
	assert.False(t, m.Allowed("https://example.com/"))
	assert.False(t, m.Allowed("https://other.example.com/"))

	_, err = ForURL("not a url at all")
	require.Error(t, err)

	_, err = ForURL("/relative")
	require.Error(t, err)
}
