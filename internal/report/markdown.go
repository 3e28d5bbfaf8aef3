// Package report renders and persists exploration results: a Markdown
// document for humans, a JSON data file for tooling and an optional SQLite
// archive of past runs.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/taotie111/browser-use/internal/dom"
	"github.com/taotie111/browser-use/internal/explorer"
)

// WriteMarkdown renders res as readable documentation.
func WriteMarkdown(w io.Writer, res *explorer.Result) error {
	md := markdown.NewMarkdown(w)

	md.H1("Site Exploration Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", res.StartURL},
			{"Run", res.RunID},
			{"Pages visited", fmt.Sprintf("%d", len(res.Pages))},
			{"Started", res.StartedAt.Format(time.RFC3339)},
			{"Finished", res.FinishedAt.Format(time.RFC3339)},
		},
	})
	md.PlainText("")

	md.H2("Structure")
	md.PlainText("")
	md.PlainText(renderTree(res))
	md.PlainText("")

	md.H2("Pages")
	md.PlainText("")
	seen := map[string]bool{}
	for i, root := range res.Roots() {
		writePageTree(md, res, root, fmt.Sprintf("%d", i+1), 3, seen)
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by browser-use*")

	return md.Build()
}

// renderTree draws the parent/child structure as a nested list, one root per
// top-level entry.
func renderTree(res *explorer.Result) string {
	var b strings.Builder
	seen := map[string]bool{}

	var walk func(url string, level int)
	walk = func(url string, level int) {
		fmt.Fprintf(&b, "%s- %s\n", strings.Repeat("  ", level), url)
		if seen[url] {
			return
		}
		seen[url] = true
		for _, child := range res.Tree[url] {
			walk(child, level+1)
		}
	}

	for _, root := range res.Roots() {
		walk(root, 0)
	}
	return strings.TrimRight(b.String(), "\n")
}

// writePageTree emits the section for url, then its children as nested
// subsections in tree insertion order. Numbering follows the tree path
// (1, 1.1, 1.2.1). Heading depth grows with nesting and caps at H6.
func writePageTree(md *markdown.Markdown, res *explorer.Result, url, number string, level int, seen map[string]bool) {
	node, ok := res.Pages[url]
	if !ok || seen[url] {
		return
	}
	seen[url] = true

	writePage(md, node, number, level)
	for i, child := range res.Tree[url] {
		writePageTree(md, res, child, fmt.Sprintf("%s.%d", number, i+1), level+1, seen)
	}
}

func writePage(md *markdown.Markdown, node *explorer.PageNode, number string, level int) {
	title := node.Title
	if title == "" {
		title = node.URL
	}
	if level > 6 {
		level = 6
	}
	md.PlainText(fmt.Sprintf("%s %s. %s", strings.Repeat("#", level), number, title))
	md.PlainText("")

	md.PlainTextf("URL: %s", node.URL)
	md.PlainTextf("Depth: %d", node.Depth)
	if node.ParentURL != "" {
		md.PlainTextf("Reached from: %s", node.ParentURL)
	}
	if node.ScreenshotPath != "" {
		md.PlainTextf("![%s](%s)", cell(title), node.ScreenshotPath)
	}
	md.PlainText("")

	if node.Purpose != nil {
		md.PlainText(node.Purpose.MainPurpose)
		if node.Purpose.UIElementsSummary != "" {
			md.PlainText(node.Purpose.UIElementsSummary)
		}
		md.PlainText("")
		if len(node.Purpose.KeyFeatures) > 0 {
			md.PlainText("**Key features:**")
			md.BulletList(node.Purpose.KeyFeatures...)
			md.PlainText("")
		}
		if len(node.Purpose.UserFlows) > 0 {
			md.PlainText("**User flows:**")
			md.BulletList(node.Purpose.UserFlows...)
			md.PlainText("")
		}
	}

	rows := elementRows(node)
	if len(rows) > 0 {
		md.Table(markdown.TableSet{
			Header: []string{"#", "Element", "Role", "Score", "Purpose"},
			Rows:   rows,
		})
	} else {
		md.PlainText("No interactive elements captured.")
	}
	md.PlainText("")
}

// elementRows lists the click candidates first, then the recorded-only
// elements, both in capture order.
func elementRows(node *explorer.PageNode) [][]string {
	var rows [][]string
	appendRows := func(recs []dom.ElementRecord, role string) {
		for _, rec := range recs {
			id := rec.ID()
			score := "-"
			if ea, ok := node.ElementAnalyses[id]; ok {
				score = fmt.Sprintf("%.2f", ea.ImportanceScore)
			}
			rows = append(rows, []string{id, cell(rec.Describe()), role, score, cell(node.Notes[id])})
		}
	}
	appendRows(node.ClickableElements, "clickable")
	appendRows(node.SelectedElements, "selected")
	return rows
}

// cell makes a value safe inside a Markdown table.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
