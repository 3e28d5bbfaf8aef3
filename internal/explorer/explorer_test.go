package explorer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taotie111/browser-use/internal/ai"
	"github.com/taotie111/browser-use/internal/allowlist"
	"github.com/taotie111/browser-use/internal/dom"
	"github.com/taotie111/browser-use/internal/selector"
)

type fakePage struct {
	title    string
	snaps    []dom.ElementSnapshot
	clickNav map[string]string // selector -> same-tab destination
	clickTab map[string]string // selector -> new-tab destination
	clickErr map[string]error
}

// fakeSession models a small site with per-tab history.
type fakeSession struct {
	site      map[string]*fakePage
	tabs      []string
	histories [][]string
	curTab    int
	log       []string
	backErr   error
}

func newFakeSession(start string, site map[string]*fakePage) *fakeSession {
	return &fakeSession{site: site, tabs: []string{start}, histories: [][]string{{}}}
}

func (f *fakeSession) cur() string { return f.tabs[f.curTab] }

func (f *fakeSession) Navigate(url string) error {
	f.log = append(f.log, "navigate:"+url)
	f.histories[f.curTab] = append(f.histories[f.curTab], f.cur())
	f.tabs[f.curTab] = url
	return nil
}

func (f *fakeSession) CurrentURL() string { return f.cur() }

func (f *fakeSession) Title() string {
	if p := f.site[f.cur()]; p != nil {
		return p.title
	}
	return ""
}

func (f *fakeSession) WaitSettle() {}

func (f *fakeSession) CaptureInventory() ([]dom.ElementSnapshot, error) {
	if p := f.site[f.cur()]; p != nil {
		return p.snaps, nil
	}
	return nil, nil
}

func (f *fakeSession) Click(sel string) error {
	f.log = append(f.log, "click:"+sel)
	p := f.site[f.cur()]
	if p == nil {
		return errors.New("no page loaded")
	}
	if err := p.clickErr[sel]; err != nil {
		return err
	}
	if dest, ok := p.clickNav[sel]; ok {
		f.histories[f.curTab] = append(f.histories[f.curTab], f.cur())
		f.tabs[f.curTab] = dest
		return nil
	}
	if dest, ok := p.clickTab[sel]; ok {
		f.tabs = append(f.tabs, dest)
		f.histories = append(f.histories, []string{})
		return nil
	}
	return fmt.Errorf("element not found: %s", sel)
}

func (f *fakeSession) GoBack() error {
	f.log = append(f.log, "back")
	if f.backErr != nil {
		return f.backErr
	}
	h := f.histories[f.curTab]
	if len(h) == 0 {
		return errors.New("no history")
	}
	f.tabs[f.curTab] = h[len(h)-1]
	f.histories[f.curTab] = h[:len(h)-1]
	return nil
}

func (f *fakeSession) TabCount() (int, error) { return len(f.tabs), nil }
func (f *fakeSession) CurrentTab() int        { return f.curTab }

func (f *fakeSession) SwitchTab(i int) error {
	if i < 0 || i >= len(f.tabs) {
		return fmt.Errorf("no tab at index %d", i)
	}
	f.curTab = i
	return nil
}

func (f *fakeSession) CloseTab(i int) error {
	if i <= 0 || i >= len(f.tabs) {
		return fmt.Errorf("no tab at index %d", i)
	}
	f.tabs = append(f.tabs[:i], f.tabs[i+1:]...)
	f.histories = append(f.histories[:i], f.histories[i+1:]...)
	if f.curTab >= len(f.tabs) {
		f.curTab = 0
	}
	return nil
}

func (f *fakeSession) Screenshot() ([]byte, error) { return []byte("png-bytes"), nil }

func (f *fakeSession) clicks() int {
	n := 0
	for _, entry := range f.log {
		if strings.HasPrefix(entry, "click:") {
			n++
		}
	}
	return n
}

// fakeAnalyzer answers per element from canned analyses keyed by page URL
// and element id; elements without an entry come back unanalyzed.
type fakeAnalyzer struct {
	analyses     map[string]map[string]ai.ElementAnalysis
	elementErr   error
	elementCalls int
	pageCalls    int
	lastShot     []byte
	windows      map[string][]string // element id -> ids passed as surrounding
}

func (f *fakeAnalyzer) AnalyzeElement(_ context.Context, page ai.PageContext, rec dom.ElementRecord, surrounding []dom.ElementRecord) (*ai.ElementAnalysis, error) {
	f.elementCalls++
	if f.elementErr != nil {
		return nil, f.elementErr
	}
	if f.windows != nil {
		ids := []string{}
		for _, s := range surrounding {
			ids = append(ids, s.ID())
		}
		f.windows[rec.ID()] = ids
	}
	analysis, ok := f.analyses[page.URL][rec.ID()]
	if !ok {
		return nil, nil
	}
	return &analysis, nil
}

func (f *fakeAnalyzer) AnalyzePage(_ context.Context, page ai.PageContext, _ []dom.ElementRecord, _ map[string]ai.ElementAnalysis, shot []byte) (*ai.PagePurpose, error) {
	f.pageCalls++
	f.lastShot = shot
	return &ai.PagePurpose{MainPurpose: "purpose of " + page.URL}, nil
}

func linkSnap(xpath, id, href string) dom.ElementSnapshot {
	return dom.ElementSnapshot{
		TagName:    "a",
		XPath:      xpath,
		Attributes: map[string]string{"id": id, "href": href},
		Text:       id,
		Kind:       dom.KindLink,
		Href:       href,
	}
}

func inputSnap(xpath, id string) dom.ElementSnapshot {
	return dom.ElementSnapshot{
		TagName:    "input",
		XPath:      xpath,
		Attributes: map[string]string{"id": id, "type": "text"},
		Kind:       dom.KindInput,
	}
}

// selFor computes the selector the explorer will click for a snapshot.
func selFor(snap dom.ElementSnapshot) string {
	recs := dom.Records([]dom.ElementSnapshot{snap})
	return selector.ForElement(recs[0], false)
}

func siteMatcher() *allowlist.Matcher {
	return allowlist.New([]string{"site.test"})
}

const (
	urlA = "https://site.test/"
	urlB = "https://site.test/b"
	urlC = "https://site.test/c"
)

func TestRunFollowsLink(t *testing.T) {
	toB := linkSnap("/html/body/a", "to-b", urlB)
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {title: "Home", snaps: []dom.ElementSnapshot{toB}, clickNav: map[string]string{selFor(toB): urlB}},
		urlB: {title: "Inner"},
	})

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher()}).Run(context.Background(), urlA)
	require.NoError(t, err)

	require.Len(t, res.Pages, 2)
	assert.Equal(t, map[string][]string{urlA: {urlB}}, res.Tree)
	assert.Equal(t, []string{urlA}, res.Roots())

	b := res.Pages[urlB]
	require.NotNil(t, b)
	assert.Equal(t, 2, b.Depth)
	assert.Equal(t, urlA, b.ParentURL)
	assert.Equal(t, "Inner", b.Title)
	assert.NotNil(t, b.ClickableElements)

	assert.Equal(t, urlA, fs.cur(), "the walk should end back on the start page")
}

func TestRunVisitsEachURLOnce(t *testing.T) {
	toB1 := linkSnap("/html/body/a[1]", "to-b-1", urlB)
	toB2 := linkSnap("/html/body/a[2]", "to-b-2", urlB)
	backToA := linkSnap("/html/body/a", "to-a", urlA)
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {
			snaps:    []dom.ElementSnapshot{toB1, toB2},
			clickNav: map[string]string{selFor(toB1): urlB, selFor(toB2): urlB},
		},
		urlB: {
			snaps:    []dom.ElementSnapshot{backToA},
			clickNav: map[string]string{selFor(backToA): urlA},
		},
	})

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher()}).Run(context.Background(), urlA)
	require.NoError(t, err)

	assert.Len(t, res.Pages, 2)
	assert.Equal(t, []string{urlB}, res.Tree[urlA], "B should be linked exactly once")
	_, hasBKey := res.Tree[urlB]
	assert.False(t, hasBKey, "pages without new children carry no tree entry")
	assert.Equal(t, 1, fs.clicks(), "already-visited destinations should not be clicked")
}

func TestRunRespectsMaxDepth(t *testing.T) {
	toB := linkSnap("/html/body/a", "to-b", urlB)
	toC := linkSnap("/html/body/a", "to-c", urlC)
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {snaps: []dom.ElementSnapshot{toB}, clickNav: map[string]string{selFor(toB): urlB}},
		urlB: {snaps: []dom.ElementSnapshot{toC}, clickNav: map[string]string{selFor(toC): urlC}},
		urlC: {},
	})

	res, err := New(fs, Options{MaxDepth: 2, Allowed: siteMatcher()}).Run(context.Background(), urlA)
	require.NoError(t, err)

	assert.Len(t, res.Pages, 2)
	assert.NotContains(t, res.Pages, urlC)
	assert.Equal(t, 1, fs.clicks(), "elements on the deepest level should not be clicked")
}

func TestRunSkipsDisallowedHosts(t *testing.T) {
	away := linkSnap("/html/body/a", "away", "https://evil.test/x")
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {snaps: []dom.ElementSnapshot{away}},
	})

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher()}).Run(context.Background(), urlA)
	require.NoError(t, err)

	assert.Len(t, res.Pages, 1)
	assert.Empty(t, res.Tree)
	assert.Zero(t, fs.clicks())
}

func TestRunClickFailureIsRecoverable(t *testing.T) {
	broken := linkSnap("/html/body/a[1]", "broken", "https://site.test/nowhere")
	toB := linkSnap("/html/body/a[2]", "to-b", urlB)
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {
			snaps:    []dom.ElementSnapshot{broken, toB},
			clickNav: map[string]string{selFor(toB): urlB},
			clickErr: map[string]error{selFor(broken): errors.New("element is covered")},
		},
		urlB: {},
	})

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher()}).Run(context.Background(), urlA)
	require.NoError(t, err)

	assert.Len(t, res.Pages, 2)
	assert.Equal(t, []string{urlB}, res.Tree[urlA])
}

func TestRunGoBackFailureAborts(t *testing.T) {
	toB := linkSnap("/html/body/a", "to-b", urlB)
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {snaps: []dom.ElementSnapshot{toB}, clickNav: map[string]string{selFor(toB): urlB}},
		urlB: {},
	})
	fs.backErr = errors.New("target crashed")

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher()}).Run(context.Background(), urlA)
	require.Error(t, err)

	require.NotNil(t, res, "the partial result must survive an abort")
	assert.Len(t, res.Pages, 2)
	assert.Equal(t, []string{urlB}, res.Tree[urlA])
}

func TestRunNewTabChild(t *testing.T) {
	toB := linkSnap("/html/body/a", "to-b", urlB)
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {snaps: []dom.ElementSnapshot{toB}, clickTab: map[string]string{selFor(toB): urlB}},
		urlB: {},
	})

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher()}).Run(context.Background(), urlA)
	require.NoError(t, err)

	require.Len(t, res.Pages, 2)
	assert.Equal(t, []string{urlB}, res.Tree[urlA])
	assert.Equal(t, 2, res.Pages[urlB].Depth)
	assert.Len(t, fs.tabs, 1, "the spawned tab should be closed")
	assert.Zero(t, fs.curTab)
	assert.Equal(t, urlA, fs.cur())
}

func TestRunWithAnalyzer(t *testing.T) {
	toB := linkSnap("/html/body/a", "to-b", urlB)
	field := inputSnap("/html/body/input[1]", "email")
	junk := inputSnap("/html/body/input[2]", "junk")
	fa := &fakeAnalyzer{
		analyses: map[string]map[string]ai.ElementAnalysis{
			urlA: {
				"0": {ElementID: "0", Purpose: "opens page B", ImportanceScore: 0.2},
				"1": {ElementID: "1", Purpose: "email entry", ImportanceScore: 0.5},
				"2": {ElementID: "2", Purpose: "decorative field", ImportanceScore: 0.1},
			},
		},
	}
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {snaps: []dom.ElementSnapshot{toB, field, junk}, clickNav: map[string]string{selFor(toB): urlB}},
		urlB: {},
	})

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher(), Analyzer: fa}).Run(context.Background(), urlA)
	require.NoError(t, err)

	a := res.Pages[urlA]
	require.NotNil(t, a)

	require.Len(t, a.ClickableElements, 1, "links stay clickable regardless of score")
	assert.Equal(t, "a", a.ClickableElements[0].TagName)
	require.Len(t, a.SelectedElements, 1, "mid-importance fields are recorded, not clicked")
	assert.Equal(t, 1, a.SelectedElements[0].HighlightIndex)

	assert.Equal(t, "opens page B", a.Notes["0"])
	assert.Equal(t, "email entry", a.Notes["1"])
	assert.Len(t, a.ElementAnalyses, 3)

	require.NotNil(t, a.Purpose)
	assert.Equal(t, "purpose of "+urlA, a.Purpose.MainPurpose)
	assert.NotEmpty(t, fa.lastShot, "page analysis should receive the screenshot")
	assert.Equal(t, 2, fa.pageCalls)

	assert.Equal(t, []string{urlB}, res.Tree[urlA], "high-value navigation is still followed")
}

func TestRunAnalyzerFailureAborts(t *testing.T) {
	toB := linkSnap("/html/body/a", "to-b", urlB)
	fa := &fakeAnalyzer{elementErr: errors.New("model unavailable")}
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {snaps: []dom.ElementSnapshot{toB}, clickNav: map[string]string{selFor(toB): urlB}},
		urlB: {},
	})

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher(), Analyzer: fa}).Run(context.Background(), urlA)
	require.Error(t, err)

	require.Len(t, res.Pages, 1, "the failing page is still recorded")
	a := res.Pages[urlA]
	assert.Nil(t, a.ElementAnalyses)
	assert.Len(t, a.ClickableElements, 1, "unanalyzed elements are never dropped")
	assert.Zero(t, fs.clicks(), "the walk stops before following links")
}

func TestRunUnanalyzedElementsContinue(t *testing.T) {
	toB := linkSnap("/html/body/a", "to-b", urlB)
	fa := &fakeAnalyzer{} // no canned analyses: every element comes back unanalyzed
	fs := newFakeSession(urlA, map[string]*fakePage{
		urlA: {snaps: []dom.ElementSnapshot{toB}, clickNav: map[string]string{selFor(toB): urlB}},
		urlB: {},
	})

	res, err := New(fs, Options{MaxDepth: 3, Allowed: siteMatcher(), Analyzer: fa}).Run(context.Background(), urlA)
	require.NoError(t, err)

	a := res.Pages[urlA]
	assert.Empty(t, a.ElementAnalyses)
	assert.Nil(t, a.Notes)
	assert.Len(t, a.ClickableElements, 1)
	assert.Len(t, res.Pages, 2, "analysis gaps never stop the crawl")
}

func TestRunPassesSurroundingWindow(t *testing.T) {
	snaps := []dom.ElementSnapshot{
		inputSnap("/html/body/input[1]", "one"),
		inputSnap("/html/body/input[2]", "two"),
		inputSnap("/html/body/input[3]", "three"),
		inputSnap("/html/body/input[4]", "four"),
	}
	fa := &fakeAnalyzer{windows: map[string][]string{}}
	fs := newFakeSession(urlA, map[string]*fakePage{urlA: {snaps: snaps}})

	_, err := New(fs, Options{MaxDepth: 1, Analyzer: fa, ContextWindow: 1}).Run(context.Background(), urlA)
	require.NoError(t, err)

	assert.Equal(t, 4, fa.elementCalls)
	assert.Equal(t, []string{"1"}, fa.windows["0"])
	assert.Equal(t, []string{"0", "2"}, fa.windows["1"])
	assert.Equal(t, []string{"1", "3"}, fa.windows["2"])
	assert.Equal(t, []string{"2"}, fa.windows["3"])
}

func TestRunSavesScreenshots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "screenshots")
	fs := newFakeSession(urlA, map[string]*fakePage{urlA: {}})

	res, err := New(fs, Options{MaxDepth: 1, ScreenshotDir: dir}).Run(context.Background(), urlA)
	require.NoError(t, err)

	node := res.Pages[urlA]
	assert.Equal(t, filepath.Join("screenshots", "page_001.png"), node.ScreenshotPath)

	data, err := os.ReadFile(filepath.Join(dir, "page_001.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := newFakeSession(urlA, map[string]*fakePage{urlA: {}})

	res, err := New(fs, Options{MaxDepth: 3}).Run(ctx, urlA)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Pages)
}

func TestPartition(t *testing.T) {
	link := dom.ElementRecord{TagName: "a", HighlightIndex: 0, Kind: dom.KindLink}
	button := dom.ElementRecord{TagName: "button", HighlightIndex: 1, Kind: dom.KindButton}
	highInput := dom.ElementRecord{TagName: "input", HighlightIndex: 2, Kind: dom.KindInput}
	midInput := dom.ElementRecord{TagName: "input", HighlightIndex: 3, Kind: dom.KindInput}
	lowInput := dom.ElementRecord{TagName: "input", HighlightIndex: 4, Kind: dom.KindInput}
	unanalyzed := dom.ElementRecord{TagName: "div", HighlightIndex: 5, Kind: dom.KindOther}

	recs := []dom.ElementRecord{link, button, highInput, midInput, lowInput, unanalyzed}
	analyses := map[string]ai.ElementAnalysis{
		"0": {ImportanceScore: 0.1},
		"1": {ImportanceScore: 0.2},
		"2": {ImportanceScore: 0.9},
		"3": {ImportanceScore: 0.5},
		"4": {ImportanceScore: 0.1},
	}

	clickable, selected := partition(recs, analyses, 0.7, 0.4)

	clickIdx := make([]int, 0, len(clickable))
	for _, rec := range clickable {
		clickIdx = append(clickIdx, rec.HighlightIndex)
	}
	assert.Equal(t, []int{0, 1, 2, 5}, clickIdx)

	require.Len(t, selected, 1)
	assert.Equal(t, 3, selected[0].HighlightIndex)
}

func TestPartitionPlainCrawl(t *testing.T) {
	recs := []dom.ElementRecord{
		{TagName: "a", HighlightIndex: 0, Kind: dom.KindLink},
		{TagName: "input", HighlightIndex: 1, Kind: dom.KindInput},
	}

	clickable, selected := partition(recs, nil, 0.7, 0.4)
	assert.Len(t, clickable, 2)
	assert.Empty(t, selected)
}

func TestRootsOrdering(t *testing.T) {
	res := NewResult(urlA, "run-1")
	t0 := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)
	res.record(&PageNode{URL: "https://b.test/", Timestamp: t0.Add(time.Second)}, "")
	res.record(&PageNode{URL: "https://a.test/", Timestamp: t0}, "")
	res.record(&PageNode{URL: "https://child.test/", Timestamp: t0, ParentURL: "https://a.test/"}, "https://a.test/")

	assert.Equal(t, []string{"https://a.test/", "https://b.test/"}, res.Roots())

	ordered := res.OrderedPages()
	require.Len(t, ordered, 3)
	assert.Equal(t, "https://a.test/", ordered[0].URL)
}
