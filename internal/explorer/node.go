package explorer

import (
	"sort"
	"time"

	"github.com/taotie111/browser-use/internal/ai"
	"github.com/taotie111/browser-use/internal/dom"
)

// PageNode is everything captured about one visited page.
type PageNode struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Depth     int       `json:"depth"`
	ParentURL string    `json:"parent_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// ClickableElements are the click candidates in capture order.
	// SelectedElements were judged worth recording but not clicking.
	ClickableElements []dom.ElementRecord `json:"clickable_elements"`
	SelectedElements  []dom.ElementRecord `json:"selected_elements,omitempty"`

	// Notes holds one line per analyzed element, keyed by highlight index.
	Notes map[string]string `json:"notes,omitempty"`

	ElementAnalyses map[string]ai.ElementAnalysis `json:"element_analyses,omitempty"`
	Purpose         *ai.PagePurpose               `json:"purpose,omitempty"`

	ScreenshotPath string `json:"screenshot_path,omitempty"`
}

// Result is a completed, possibly partial, exploration. Pages is keyed by
// URL; Tree maps a parent URL to its children in discovery order. Pages
// without children carry no Tree entry.
type Result struct {
	RunID      string               `json:"run_id,omitempty"`
	StartURL   string               `json:"start_url"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Pages      map[string]*PageNode `json:"pages"`
	Tree       map[string][]string  `json:"tree_structure"`
}

// NewResult initializes an empty result for a run.
func NewResult(startURL, runID string) *Result {
	return &Result{
		RunID:     runID,
		StartURL:  startURL,
		StartedAt: time.Now(),
		Pages:     map[string]*PageNode{},
		Tree:      map[string][]string{},
	}
}

// record stores node and, when it has a parent, appends it to the parent's
// child list.
func (r *Result) record(node *PageNode, parentURL string) {
	r.Pages[node.URL] = node
	if parentURL != "" {
		r.Tree[parentURL] = append(r.Tree[parentURL], node.URL)
	}
}

// Roots returns the URLs explored without a parent, in visit order.
func (r *Result) Roots() []string {
	var roots []*PageNode
	for _, n := range r.Pages {
		if n.ParentURL == "" {
			roots = append(roots, n)
		}
	}
	sortByVisit(roots)

	urls := make([]string, len(roots))
	for i, n := range roots {
		urls[i] = n.URL
	}
	return urls
}

// OrderedPages returns every page in visit order.
func (r *Result) OrderedPages() []*PageNode {
	pages := make([]*PageNode, 0, len(r.Pages))
	for _, n := range r.Pages {
		pages = append(pages, n)
	}
	sortByVisit(pages)
	return pages
}

func sortByVisit(pages []*PageNode) {
	sort.Slice(pages, func(i, j int) bool {
		if !pages[i].Timestamp.Equal(pages[j].Timestamp) {
			return pages[i].Timestamp.Before(pages[j].Timestamp)
		}
		return pages[i].URL < pages[j].URL
	})
}
