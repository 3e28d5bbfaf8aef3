package ai

import (
	"fmt"
	"strings"

	"github.com/taotie111/browser-use/internal/dom"
)

const elementSystemPrompt = `You are a web page element analyst. Your task is to judge one interactive element of a page for automated exploration.

You will receive:
1. The page URL and title
2. The element to analyze, prefixed with its id in brackets
3. The surrounding elements in layout order, for context

Output a single JSON object:
- "element_id": the id from the element's brackets, as a string
- "element_type": what kind of control this is (button, link, input, select, checkbox, radio, ...)
- "purpose": one sentence on what the element does
- "possible_actions": concrete user actions such as "click", "type", "select", "toggle"
- "importance_score": float between 0 and 1 for how central the element is to the page's purpose
- "interaction_hints": preconditions or effects worth knowing before interacting
- "related_elements": integer ids of surrounding elements in the same flow

Scoring guidance:
- Primary navigation and calls to action score high (0.7+)
- Form fields and secondary navigation score medium (0.4-0.7)
- Cosmetic toggles, footer links and social icons score low (below 0.4)

Example output:
{"element_id": "0", "element_type": "button", "purpose": "Submits the login form", "possible_actions": ["click"], "importance_score": 0.9, "interaction_hints": ["requires username and password filled first"], "related_elements": [1, 2]}

Respond ONLY with the JSON object, no explanation or markdown.`

const purposeSystemPrompt = `You are a web page analyst. Your task is to summarize what a page is for.

You will receive:
1. The page URL and title
2. A full-page screenshot, when one is available
3. The list of interactive elements found on the page, each with its analysis where one succeeded

Output a single JSON object:
- "main_purpose": one sentence on what the page is for
- "key_features": features a user can reach from this page
- "ui_elements_summary": short description of the visible interface
- "user_flows": step-by-step flows this page starts or continues
- "key_interaction_points": the handful of elements that matter most

Ground every statement in what is actually present on the page. Respond ONLY with the JSON object, no explanation or markdown.`

// buildElementPrompt renders one element analysis request. The surrounding
// elements ride along so the model can fill related_elements from real
// layout context.
func buildElementPrompt(page PageContext, rec dom.ElementRecord, surrounding []dom.ElementRecord) string {
	var b strings.Builder
	writePageHeader(&b, page)
	b.WriteString("\nElement:\n")
	b.WriteString(elementLine(rec))
	b.WriteByte('\n')
	if len(surrounding) > 0 {
		b.WriteString("\nSurrounding elements:\n")
		for _, s := range surrounding {
			b.WriteString(elementLine(s))
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nAnalyze the element.")
	return b.String()
}

// buildPurposePrompt renders the page purpose request, annotating each
// element with its collected analysis.
func buildPurposePrompt(page PageContext, recs []dom.ElementRecord, analyses map[string]ElementAnalysis, hasScreenshot bool) string {
	var b strings.Builder
	writePageHeader(&b, page)
	if hasScreenshot {
		b.WriteString("A full-page screenshot is attached.\n")
	}
	fmt.Fprintf(&b, "\nInteractive elements (%d):\n", len(recs))
	for _, rec := range recs {
		b.WriteString(elementLine(rec))
		if ea, ok := analyses[rec.ID()]; ok && ea.Purpose != "" {
			fmt.Fprintf(&b, " -> %s (importance %.2f)", ea.Purpose, ea.ImportanceScore)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nSummarize this page.")
	return b.String()
}

func writePageHeader(b *strings.Builder, page PageContext) {
	fmt.Fprintf(b, "Page: %s\n", page.URL)
	if page.Title != "" {
		fmt.Fprintf(b, "Title: %s\n", page.Title)
	}
}

// elementLine renders one element as "[id] kind tag#id.class "text"" plus the
// attributes that identify it.
func elementLine(rec dom.ElementRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", rec.ID())
	if string(rec.Kind) != rec.TagName {
		fmt.Fprintf(&b, " %s", rec.Kind)
	}
	fmt.Fprintf(&b, " %s", rec.Describe())
	for _, key := range []string{"type", "name", "placeholder", "aria-label", "role"} {
		if v := rec.Attributes[key]; v != "" {
			fmt.Fprintf(&b, " %s=%q", key, dom.Truncate(v, 60))
		}
	}
	if rec.Href != "" {
		fmt.Fprintf(&b, " href=%q", dom.Truncate(rec.Href, 80))
	}
	return b.String()
}
