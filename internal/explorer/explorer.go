// Package explorer walks a site by clicking its interactive elements,
// depth-first within a configured bound, and records a PageNode per visited
// page. Analysis is optional: without an Analyzer the walk is a plain crawl
// where every captured element is a click candidate.
package explorer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taotie111/browser-use/internal/ai"
	"github.com/taotie111/browser-use/internal/allowlist"
	"github.com/taotie111/browser-use/internal/dom"
	"github.com/taotie111/browser-use/internal/logger"
	"github.com/taotie111/browser-use/internal/selector"
)

// Session is the browser surface the explorer drives.
type Session interface {
	Navigate(url string) error
	CurrentURL() string
	Title() string
	WaitSettle()
	CaptureInventory() ([]dom.ElementSnapshot, error)
	Click(selector string) error
	GoBack() error
	TabCount() (int, error)
	CurrentTab() int
	SwitchTab(i int) error
	CloseTab(i int) error
	Screenshot() ([]byte, error)
}

// Analyzer judges elements and pages. A nil analysis with a nil error means
// the element or page stays unanalyzed; an error aborts the walk.
type Analyzer interface {
	AnalyzeElement(ctx context.Context, page ai.PageContext, rec dom.ElementRecord, surrounding []dom.ElementRecord) (*ai.ElementAnalysis, error)
	AnalyzePage(ctx context.Context, page ai.PageContext, recs []dom.ElementRecord, analyses map[string]ai.ElementAnalysis, screenshotPNG []byte) (*ai.PagePurpose, error)
}

// Options bounds the traversal and wires optional analysis.
type Options struct {
	// MaxDepth is the deepest visited level; the start page is level 1.
	MaxDepth int
	// Allowed restricts which hosts may be visited. Nil allows everything.
	Allowed *allowlist.Matcher
	// Analyzer is optional; nil runs a plain crawl.
	Analyzer Analyzer
	// ContextWindow is the index distance of elements passed as context with
	// each element analysis.
	ContextWindow int
	// Importance thresholds partition analyzed elements.
	HighImportance float64
	LowImportance  float64
	// ScreenshotDir receives one PNG per page. Empty disables saving;
	// screenshots are still captured for vision analysis when an Analyzer
	// is present.
	ScreenshotDir string
	RunID         string
}

// Explorer performs one exploration run over a Session.
type Explorer struct {
	session Session
	opts    Options
	result  *Result
}

// New prepares an Explorer. Zero thresholds and depth fall back to the
// defaults.
func New(session Session, opts Options) *Explorer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 2
	}
	if opts.HighImportance <= 0 {
		opts.HighImportance = 0.7
	}
	if opts.LowImportance <= 0 {
		opts.LowImportance = 0.4
	}
	return &Explorer{session: session, opts: opts}
}

// Run explores from startURL. On fatal failures the partial result is
// returned alongside the error so callers can still persist it.
func (e *Explorer) Run(ctx context.Context, startURL string) (*Result, error) {
	e.result = NewResult(startURL, e.opts.RunID)
	err := e.explore(ctx, startURL, 1, "")
	e.result.FinishedAt = time.Now()
	return e.result, err
}

// explore visits url at the given depth, records its PageNode and follows
// its clickable links. Already-visited URLs and depths beyond the bound
// return immediately.
func (e *Explorer) explore(ctx context.Context, url string, depth int, parentURL string) error {
	if depth > e.opts.MaxDepth {
		return nil
	}
	if _, seen := e.result.Pages[url]; seen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if e.session.CurrentURL() != url {
		if err := e.session.Navigate(url); err != nil {
			return err
		}
	}
	e.session.WaitSettle()

	node, err := e.capturePage(ctx, url, depth, parentURL)
	e.result.record(node, parentURL)
	if err != nil {
		return err
	}
	logger.Debug("captured %s: %d clickable, %d selected", url, len(node.ClickableElements), len(node.SelectedElements))

	return e.followLinks(ctx, node, depth)
}

// capturePage builds the PageNode for the page the session currently shows.
// Capture failures degrade to a sparser node; an analyzer failure aborts the
// walk with whatever the node holds so far. Either way the node is usable.
func (e *Explorer) capturePage(ctx context.Context, url string, depth int, parentURL string) (*PageNode, error) {
	node := &PageNode{
		URL:       url,
		Title:     e.session.Title(),
		Depth:     depth,
		ParentURL: parentURL,
		Timestamp: time.Now(),
	}

	snaps, err := e.session.CaptureInventory()
	if err != nil {
		logger.Warn("inventory on %s: %v", url, err)
		node.ClickableElements = []dom.ElementRecord{}
		return node, nil
	}
	recs := dom.Records(snaps)

	analyses, aerr := e.analyzeElements(ctx, node, recs)
	if len(analyses) > 0 {
		node.ElementAnalyses = analyses
	}
	node.Notes = notesFrom(analyses)
	node.ClickableElements, node.SelectedElements = partition(recs, analyses, e.opts.HighImportance, e.opts.LowImportance)
	if aerr != nil {
		return node, aerr
	}

	return node, e.capturePurpose(ctx, node, recs)
}

// analyzeElements judges each record with its neighbors as context. Records
// the analyzer could not parse an answer for stay absent from the map; a
// failing client stops the loop and returns what was collected.
func (e *Explorer) analyzeElements(ctx context.Context, node *PageNode, recs []dom.ElementRecord) (map[string]ai.ElementAnalysis, error) {
	if e.opts.Analyzer == nil || len(recs) == 0 {
		return nil, nil
	}

	page := ai.PageContext{URL: node.URL, Title: node.Title}
	analyses := make(map[string]ai.ElementAnalysis, len(recs))
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return analyses, err
		}
		analysis, err := e.opts.Analyzer.AnalyzeElement(ctx, page, rec, surrounding(recs, i, e.opts.ContextWindow))
		if err != nil {
			return analyses, err
		}
		if analysis == nil {
			continue
		}
		analyses[rec.ID()] = *analysis
	}
	return analyses, nil
}

// surrounding returns the records within window positions of index i,
// excluding i itself, in capture order.
func surrounding(recs []dom.ElementRecord, i, window int) []dom.ElementRecord {
	if window <= 0 {
		return nil
	}
	lo := i - window
	if lo < 0 {
		lo = 0
	}
	hi := i + window
	if hi > len(recs)-1 {
		hi = len(recs) - 1
	}

	out := make([]dom.ElementRecord, 0, hi-lo)
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		out = append(out, recs[j])
	}
	return out
}

// capturePurpose screenshots the page and asks for its purpose. The
// screenshot feeds vision analysis and, when a directory is configured, is
// saved as an artifact.
func (e *Explorer) capturePurpose(ctx context.Context, node *PageNode, recs []dom.ElementRecord) error {
	if e.opts.ScreenshotDir == "" && e.opts.Analyzer == nil {
		return nil
	}

	shot, err := e.session.Screenshot()
	if err != nil {
		logger.Warn("screenshot on %s: %v", node.URL, err)
		shot = nil
	}
	if len(shot) > 0 && e.opts.ScreenshotDir != "" {
		node.ScreenshotPath = e.saveScreenshot(shot)
	}

	if e.opts.Analyzer == nil {
		return nil
	}
	purpose, err := e.opts.Analyzer.AnalyzePage(ctx, ai.PageContext{URL: node.URL, Title: node.Title}, recs, node.ElementAnalyses, shot)
	if err != nil {
		return err
	}
	node.Purpose = purpose
	return nil
}

// saveScreenshot writes the PNG under the screenshot directory and returns
// a path relative to the output directory, empty on failure.
func (e *Explorer) saveScreenshot(shot []byte) string {
	if err := os.MkdirAll(e.opts.ScreenshotDir, 0o755); err != nil {
		logger.Warn("create %s: %v", e.opts.ScreenshotDir, err)
		return ""
	}
	name := fmt.Sprintf("page_%03d.png", len(e.result.Pages)+1)
	if err := os.WriteFile(filepath.Join(e.opts.ScreenshotDir, name), shot, 0o644); err != nil {
		logger.Warn("save screenshot: %v", err)
		return ""
	}
	return filepath.Join(filepath.Base(e.opts.ScreenshotDir), name)
}

// followLinks clicks through the click candidates of node. Click failures
// skip to the next element; navigation and tab failures abort the run.
func (e *Explorer) followLinks(ctx context.Context, node *PageNode, depth int) error {
	if depth+1 > e.opts.MaxDepth {
		return nil
	}
	for _, rec := range node.ClickableElements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.shouldFollow(rec) {
			continue
		}
		if err := e.followElement(ctx, node, rec, depth); err != nil {
			return err
		}
	}
	return nil
}

// shouldFollow applies the pre-click checks: the element must carry a
// resolved destination the allowlist admits and that has not been visited.
func (e *Explorer) shouldFollow(rec dom.ElementRecord) bool {
	if rec.Href == "" {
		return false
	}
	if _, seen := e.result.Pages[rec.Href]; seen {
		return false
	}
	if !e.opts.Allowed.Allowed(rec.Href) {
		logger.Debug("skip %s: not in allowed domains", rec.Href)
		return false
	}
	return true
}

// followElement clicks rec, explores the destination and restores the
// session to node's page.
func (e *Explorer) followElement(ctx context.Context, node *PageNode, rec dom.ElementRecord, depth int) error {
	sel := selector.ForElement(rec, false)

	tabsBefore, err := e.session.TabCount()
	if err != nil {
		return fmt.Errorf("inspect tabs before click: %w", err)
	}

	logger.Debug("click %s -> %s", rec.Describe(), rec.Href)
	if err := e.session.Click(sel); err != nil {
		logger.Warn("click %s on %s: %v", sel, node.URL, err)
		return nil
	}
	e.session.WaitSettle()

	tabsAfter, err := e.session.TabCount()
	if err != nil {
		return fmt.Errorf("inspect tabs after click: %w", err)
	}
	if tabsAfter > tabsBefore {
		return e.exploreNewTab(ctx, rec.Href, depth, node.URL, tabsAfter-1)
	}

	if err := e.explore(ctx, rec.Href, depth+1, node.URL); err != nil {
		return err
	}

	if err := e.session.GoBack(); err != nil {
		return err
	}
	e.session.WaitSettle()
	if e.session.CurrentURL() != node.URL {
		if err := e.session.Navigate(node.URL); err != nil {
			return err
		}
		e.session.WaitSettle()
	}
	return nil
}

// exploreNewTab walks a child page that opened in its own tab, then closes
// it and returns to the tab the click came from. Tab handling failures are
// fatal: losing track of the layout desyncs the whole traversal.
func (e *Explorer) exploreNewTab(ctx context.Context, url string, depth int, parentURL string, tabIndex int) error {
	returnTab := e.session.CurrentTab()

	if err := e.session.SwitchTab(tabIndex); err != nil {
		return err
	}
	e.session.WaitSettle()

	if err := e.explore(ctx, url, depth+1, parentURL); err != nil {
		return err
	}

	if err := e.session.CloseTab(tabIndex); err != nil {
		return err
	}
	if err := e.session.SwitchTab(returnTab); err != nil {
		return err
	}
	e.session.WaitSettle()
	return nil
}

// partition splits records into click candidates and recorded-only
// elements. Natively clickable and unanalyzed elements always stay click
// candidates; analyzed non-native elements are kept, recorded or dropped by
// their importance score.
func partition(recs []dom.ElementRecord, analyses map[string]ai.ElementAnalysis, high, low float64) (clickable, selected []dom.ElementRecord) {
	clickable = []dom.ElementRecord{}
	for _, rec := range recs {
		ea, ok := analyses[rec.ID()]
		if !ok || rec.NativelyClickable() || ea.ImportanceScore >= high {
			clickable = append(clickable, rec)
			continue
		}
		if ea.ImportanceScore >= low {
			selected = append(selected, rec)
		}
	}
	return clickable, selected
}

// notesFrom keys each analyzed element's purpose line by its highlight
// index.
func notesFrom(analyses map[string]ai.ElementAnalysis) map[string]string {
	if len(analyses) == 0 {
		return nil
	}
	notes := make(map[string]string, len(analyses))
	for id, ea := range analyses {
		if ea.Purpose != "" {
			notes[id] = ea.Purpose
		}
	}
	if len(notes) == 0 {
		return nil
	}
	return notes
}
