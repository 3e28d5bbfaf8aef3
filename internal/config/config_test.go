package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Browser.IsHeadless())
	assert.Equal(t, 1280, cfg.Browser.Width())
	assert.Equal(t, 720, cfg.Browser.Height())
	assert.Equal(t, 5*time.Second, cfg.Browser.Settle())
	assert.Equal(t, 3, cfg.Crawl.MaxDepth)
	assert.Equal(t, "claude", cfg.Analyzer.Provider)
	assert.Equal(t, "openai", cfg.Analyzer.FallbackProvider)
	assert.Equal(t, 2, cfg.Analyzer.Window())
	assert.InDelta(t, 0.7, cfg.Analyzer.HighImportance, 0.0001)
	assert.InDelta(t, 0.4, cfg.Analyzer.LowImportance, 0.0001)
	assert.Equal(t, "exploration", cfg.Output.Dir)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "browseruse.yaml")
	content := `
browser:
  headless: false
  viewport_width: 1920
  settle_timeout: "10s"
crawl:
  max_depth: 5
  allowed_domains:
    - example.com
    - "*.example.org"
analyzer:
  model: claude-test
output:
  dir: out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.IsHeadless())
	assert.Equal(t, 1920, cfg.Browser.Width())
	assert.Equal(t, 720, cfg.Browser.Height(), "absent keys keep defaults")
	assert.Equal(t, 10*time.Second, cfg.Browser.Settle())
	assert.Equal(t, 5, cfg.Crawl.MaxDepth)
	assert.Equal(t, []string{"example.com", "*.example.org"}, cfg.Crawl.AllowedDomains)
	assert.Equal(t, "claude", cfg.Analyzer.Provider, "absent keys keep defaults")
	assert.Equal(t, "claude-test", cfg.Analyzer.Model)
	assert.Equal(t, "out", cfg.Output.Dir)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(":\n  - ["), 0644))
	_, err = Load(bad)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Crawl.MaxDepth = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Analyzer.LowImportance = 0.9
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Analyzer.Provider = "mystery"
	require.Error(t, cfg.Validate())
}

func TestGetterFallbacks(t *testing.T) {
	t.Parallel()

	b := BrowserConfig{SettleTimeout: "not-a-duration", ViewportWidth: -5}
	assert.Equal(t, 5*time.Second, b.Settle())
	assert.Equal(t, 1280, b.Width())

	a := AnalyzerConfig{ContextWindow: -1}
	assert.Equal(t, 2, a.Window())

	o := OutputConfig{ArchivePath: "/tmp/custom.db"}
	assert.Equal(t, "/tmp/custom.db", o.Archive())
	assert.NotEmpty(t, OutputConfig{}.Archive())
}
