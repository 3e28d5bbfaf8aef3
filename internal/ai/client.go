// Package ai analyzes pages and their interactive elements with an LLM.
// Two providers are supported: Anthropic Claude and any OpenAI-compatible
// API. The Analyzer wraps a provider client with response salvage (fence
// stripping, bracket extraction, parse-failure archiving) and a permanent
// fallback switch for regional rejections.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Client generates completions for analysis prompts.
type Client interface {
	// Name identifies the provider in logs and reports.
	Name() string
	// Generate returns the raw completion for a text-only prompt.
	Generate(ctx context.Context, system, user string) (string, error)
	// GenerateVision returns the completion for a prompt paired with a PNG
	// screenshot.
	GenerateVision(ctx context.Context, system, user string, screenshotPNG []byte) (string, error)
}

// ErrUnsupportedRegion marks provider rejections no retry can fix, such as
// geo-blocked API access.
var ErrUnsupportedRegion = errors.New("provider not available in this region")

// NewClient builds the client for a provider name. Model may be empty to use
// the provider default.
func NewClient(provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case "claude", "anthropic":
		return newClaudeClient(model)
	case "openai", "gpt":
		return newOpenAIClient(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", provider)
	}
}

// apiKeyFromEnv returns the first non-empty environment variable from names.
func apiKeyFromEnv(names ...string) (string, error) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s environment variable required", strings.Join(names, " or "))
}

// unsupportedRegionMarkers are substrings providers use when rejecting
// requests from unsupported locations.
var unsupportedRegionMarkers = []string{
	"unsupported_country_region_territory",
	"user location is not supported",
	"unsupported region",
}

// IsUnsupportedRegion reports whether err is a permanent regional rejection.
func IsUnsupportedRegion(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnsupportedRegion) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range unsupportedRegionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
