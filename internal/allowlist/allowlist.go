// Package allowlist restricts which URLs the exploration may visit.
package allowlist

import (
	"fmt"
	"net/url"
	"strings"
)

// Matcher decides whether a URL falls inside the allowed host patterns.
// A nil Matcher, or one built from an empty pattern list, allows every URL
// that parses into a scheme and host.
type Matcher struct {
	patterns []string
}

// New builds a Matcher from host patterns. A pattern is either a bare domain
// ("example.com"), which matches only that exact host, or a leading-wildcard
// pattern ("*.mysite.org"), which matches the apex and any subdomain of it.
// Matching is case-insensitive and ignores ports. Empty patterns are dropped.
func New(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// ForURL builds a Matcher that allows only the exact host of rawURL.
// This is the default scope of a run: stay on the start page's host.
func ForURL(rawURL string) (*Matcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("start url %q has no host", rawURL)
	}
	return New([]string{host}), nil
}

// Patterns returns the normalized pattern list.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}

// Allowed reports whether rawURL may be visited. URLs that do not parse into
// a scheme and host are always rejected. No network access occurs.
func (m *Matcher) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme == "" || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if m == nil || len(m.patterns) == 0 {
		return true
	}
	for _, p := range m.patterns {
		if strings.HasPrefix(p, "*.") {
			suffix := strings.TrimPrefix(p, "*.")
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == p {
			return true
		}
	}
	return false
}
