package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taotie111/browser-use/internal/dom"
	"github.com/taotie111/browser-use/internal/logger"
)

// Analyzer runs element and page analysis with a primary client and an
// optional fallback for unsupported-region rejections. Switching to the
// fallback is permanent for the lifetime of the Analyzer.
type Analyzer struct {
	client   Client
	fallback Client
	errorDir string
}

// AnalyzerOptions configures NewAnalyzer.
type AnalyzerOptions struct {
	// Fallback answers requests after the primary reports an unsupported
	// region. Nil disables the fallback.
	Fallback Client
	// ErrorDir receives raw responses that failed JSON parsing. Empty
	// disables archiving.
	ErrorDir string
}

// NewAnalyzer wraps client with response parsing and the fallback policy.
func NewAnalyzer(client Client, opts AnalyzerOptions) *Analyzer {
	return &Analyzer{
		client:   client,
		fallback: opts.Fallback,
		errorDir: opts.ErrorDir,
	}
}

// Provider names the client currently answering requests.
func (a *Analyzer) Provider() string { return a.client.Name() }

// AnalyzeElement asks the model to judge one element, passing its
// surrounding elements as context. A response that cannot be parsed is
// archived and reported as a nil analysis; only client failures surface as
// errors.
func (a *Analyzer) AnalyzeElement(ctx context.Context, page PageContext, rec dom.ElementRecord, surrounding []dom.ElementRecord) (*ElementAnalysis, error) {
	user := buildElementPrompt(page, rec, surrounding)
	raw, err := a.generate(ctx, elementSystemPrompt, user, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze element %s on %s: %w", rec.ID(), page.URL, err)
	}

	analysis, perr := parseAnalysisJSON(raw)
	if perr != nil {
		a.archiveBadResponse("element", raw, perr)
		logger.Warn("unparseable analysis for element %s on %s: %v", rec.ID(), page.URL, perr)
		return nil, nil
	}
	if analysis.ElementID == "" {
		analysis.ElementID = rec.ID()
	}
	return analysis, nil
}

// AnalyzePage summarizes the page from its elements and their collected
// analyses, attaching the screenshot when one is available. Parse failures
// are archived and reported as a nil purpose.
func (a *Analyzer) AnalyzePage(ctx context.Context, page PageContext, recs []dom.ElementRecord, analyses map[string]ElementAnalysis, screenshotPNG []byte) (*PagePurpose, error) {
	user := buildPurposePrompt(page, recs, analyses, len(screenshotPNG) > 0)
	raw, err := a.generate(ctx, purposeSystemPrompt, user, screenshotPNG)
	if err != nil {
		return nil, fmt.Errorf("analyze page %s: %w", page.URL, err)
	}

	purpose, perr := parsePurposeJSON(raw)
	if perr != nil {
		a.archiveBadResponse("page", raw, perr)
		logger.Warn("unparseable page analysis for %s: %v", page.URL, perr)
		return nil, nil
	}
	return purpose, nil
}

// generate runs one completion on the current client. An unsupported-region
// rejection switches to the fallback before a single retry; any later
// request goes straight to the fallback.
func (a *Analyzer) generate(ctx context.Context, system, user string, screenshotPNG []byte) (string, error) {
	raw, err := complete(ctx, a.client, system, user, screenshotPNG)
	if err == nil {
		return raw, nil
	}
	if !IsUnsupportedRegion(err) || a.fallback == nil {
		return "", err
	}

	logger.Warn("%s rejected the request (%v), switching to %s for the rest of the run",
		a.client.Name(), err, a.fallback.Name())
	a.client = a.fallback
	a.fallback = nil
	return complete(ctx, a.client, system, user, screenshotPNG)
}

func complete(ctx context.Context, c Client, system, user string, screenshotPNG []byte) (string, error) {
	if len(screenshotPNG) > 0 {
		return c.GenerateVision(ctx, system, user, screenshotPNG)
	}
	return c.Generate(ctx, system, user)
}

// archiveBadResponse writes raw to the error directory, named by timestamp
// and analysis kind with a random suffix against same-second collisions.
func (a *Analyzer) archiveBadResponse(kind, raw string, cause error) {
	if a.errorDir == "" {
		return
	}
	if err := os.MkdirAll(a.errorDir, 0o755); err != nil {
		logger.Warn("create %s: %v", a.errorDir, err)
		return
	}

	name := fmt.Sprintf("%s_%s_%s.txt", time.Now().Format("20060102T150405"), kind, uuid.NewString()[:8])
	path := filepath.Join(a.errorDir, name)
	body := fmt.Sprintf("parse error: %v\n---\n%s\n", cause, raw)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		logger.Warn("archive bad response: %v", err)
		return
	}
	logger.Debug("archived unparseable response to %s", path)
}

// parseAnalysisJSON extracts and parses a JSON object from a response that
// may contain surrounding text or markdown fences.
func parseAnalysisJSON(response string) (*ElementAnalysis, error) {
	response = stripFences(response)

	// First try direct parsing
	var analysis ElementAnalysis
	if err := json.Unmarshal([]byte(response), &analysis); err == nil {
		return &analysis, nil
	}

	body, err := extractJSON(response, '{', '}')
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return &analysis, nil
}

// parsePurposeJSON extracts and parses the purpose object the same way.
func parsePurposeJSON(response string) (*PagePurpose, error) {
	response = stripFences(response)

	var purpose PagePurpose
	if err := json.Unmarshal([]byte(response), &purpose); err == nil {
		return &purpose, nil
	}

	body, err := extractJSON(response, '{', '}')
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &purpose); err != nil {
		return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return &purpose, nil
}

// stripFences removes a wrapping markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// extractJSON returns the first balanced JSON value delimited by opener and
// closer in s.
func extractJSON(s string, opener, closer byte) (string, error) {
	start := strings.IndexByte(s, opener)
	if start == -1 {
		return "", fmt.Errorf("no JSON value found in response")
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("no matching closing bracket found")
}
