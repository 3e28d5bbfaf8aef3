// Package config loads exploration settings from YAML, overlaying a file
// found in the working directory or the XDG config home on compiled-in
// defaults. CLI flags overlay the result in turn.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "browseruse.yaml"
	// appDir is the directory name under the XDG config and data homes.
	appDir = "browseruse"
)

// Config captures all tunable settings for an exploration run.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Output   OutputConfig   `yaml:"output"`
}

// BrowserConfig configures how Chrome is launched and driven.
type BrowserConfig struct {
	// Headless controls whether Chrome runs headless (default: true).
	Headless *bool `yaml:"headless"`
	// Viewport size for the session (defaults: 1280x720).
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`
	// Bounded wait for network quiescence after navigation (e.g. "5s").
	SettleTimeout string `yaml:"settle_timeout"`
	// Optional Chrome/Chromium profile directory for authenticated sessions.
	ProfileDir string `yaml:"profile_dir"`
}

// CrawlConfig bounds the traversal.
type CrawlConfig struct {
	// MaxDepth is the recursion bound; the start page is depth 1.
	MaxDepth int `yaml:"max_depth"`
	// AllowedDomains are host patterns ("example.com", "*.example.com").
	// Empty means: stay on the start URL's exact host.
	AllowedDomains []string `yaml:"allowed_domains"`
}

// AnalyzerConfig selects the semantic-analysis collaborators.
type AnalyzerConfig struct {
	// Provider names the primary client: claude or openai.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// Fallback client used after an unsupported-region failure.
	FallbackProvider string `yaml:"fallback_provider"`
	FallbackModel    string `yaml:"fallback_model"`
	// ContextWindow is the index distance of surrounding elements passed as
	// context with each element analysis.
	ContextWindow int `yaml:"context_window"`
	// Importance thresholds for partitioning analyzed elements.
	HighImportance float64 `yaml:"high_importance"`
	LowImportance  float64 `yaml:"low_importance"`
}

// OutputConfig controls artifact placement.
type OutputConfig struct {
	// Dir receives documentation.md, exploration_data.json, llm_json_errors/
	// and screenshots/.
	Dir string `yaml:"dir"`
	// ArchivePath overrides the default SQLite archive location.
	ArchivePath string `yaml:"archive_path"`
	// ScreenshotMaxWidth bounds stored and prompt-attached screenshots.
	ScreenshotMaxWidth int `yaml:"screenshot_max_width"`
}

// Default returns the compiled-in defaults.
func Default() Config {
	return Config{
		Browser: BrowserConfig{
			ViewportWidth:  1280,
			ViewportHeight: 720,
			SettleTimeout:  "5s",
		},
		Crawl: CrawlConfig{
			MaxDepth: 3,
		},
		Analyzer: AnalyzerConfig{
			Provider:         "claude",
			FallbackProvider: "openai",
			ContextWindow:    2,
			HighImportance:   0.7,
			LowImportance:    0.4,
		},
		Output: OutputConfig{
			Dir:                "exploration",
			ScreenshotMaxWidth: 1280,
		},
	}
}

// Load reads YAML from path and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("config path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Find returns the first config file present: ./browseruse.yaml, then
// $XDG_CONFIG_HOME/browseruse/config.yaml. Empty when neither exists.
func Find() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	p := filepath.Join(xdg.ConfigHome, appDir, "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// DefaultArchivePath returns the archive database location used when the
// config does not name one.
func DefaultArchivePath() string {
	return filepath.Join(xdg.DataHome, appDir, "explorations.db")
}

// Validate rejects values an exploration cannot start with.
func (c *Config) Validate() error {
	if c.Crawl.MaxDepth < 1 {
		return errors.New("crawl.max_depth must be at least 1")
	}
	if c.Analyzer.LowImportance > c.Analyzer.HighImportance {
		return errors.New("analyzer.low_importance must not exceed analyzer.high_importance")
	}
	switch c.Analyzer.Provider {
	case "", "claude", "anthropic", "openai", "gpt":
	default:
		return fmt.Errorf("unknown analyzer.provider %q", c.Analyzer.Provider)
	}
	return nil
}

// IsHeadless returns whether Chrome should run headless (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// Settle returns the parsed settle timeout with a sane default.
func (b BrowserConfig) Settle() time.Duration {
	if b.SettleTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(b.SettleTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// Width returns the viewport width with a sane default.
func (b BrowserConfig) Width() int {
	if b.ViewportWidth <= 0 {
		return 1280
	}
	return b.ViewportWidth
}

// Height returns the viewport height with a sane default.
func (b BrowserConfig) Height() int {
	if b.ViewportHeight <= 0 {
		return 720
	}
	return b.ViewportHeight
}

// Archive returns the configured archive path or the XDG default.
func (o OutputConfig) Archive() string {
	if o.ArchivePath != "" {
		return o.ArchivePath
	}
	return DefaultArchivePath()
}

// Window returns the surrounding-context distance with a sane default.
func (a AnalyzerConfig) Window() int {
	if a.ContextWindow <= 0 {
		return 2
	}
	return a.ContextWindow
}
