// Package dom models the interactive elements captured from a live page.
package dom

import (
	"strconv"
	"strings"
)

// Kind classifies a captured element.
type Kind string

const (
	KindButton   Kind = "button"
	KindLink     Kind = "link"
	KindInput    Kind = "input"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindOther    Kind = "other"
)

// ElementSnapshot is one interactive element as harvested from the live page
// by the session façade. Snapshots carry no identity; they become
// ElementRecords once highlight indexes are assigned in capture order.
type ElementSnapshot struct {
	TagName    string
	XPath      string
	Attributes map[string]string
	Text       string
	Kind       Kind
	Href       string // browser-resolved absolute target for anchors
}

// ElementRecord is a frozen snapshot of one DOM node at capture time.
// HighlightIndex is the element's position in the selector map and the join
// key for analyses and notes. The raw href attribute stays in Attributes;
// Href holds the resolved absolute target.
type ElementRecord struct {
	TagName        string            `json:"tag_name"`
	XPath          string            `json:"xpath"`
	Attributes     map[string]string `json:"attributes"`
	HighlightIndex int               `json:"highlight_index"`
	Text           string            `json:"text,omitempty"`
	Kind           Kind              `json:"kind"`
	Href           string            `json:"href,omitempty"`
}

// Records freezes snapshots into records, assigning highlight indexes in
// capture order starting at zero.
func Records(snaps []ElementSnapshot) []ElementRecord {
	records := make([]ElementRecord, 0, len(snaps))
	for i, s := range snaps {
		attrs := s.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		records = append(records, ElementRecord{
			TagName:        s.TagName,
			XPath:          s.XPath,
			Attributes:     attrs,
			HighlightIndex: i,
			Text:           s.Text,
			Kind:           s.Kind,
			Href:           s.Href,
		})
	}
	return records
}

// ID returns the identifier joining this record to analyses and notes.
func (r ElementRecord) ID() string {
	return strconv.Itoa(r.HighlightIndex)
}

// NativelyClickable reports whether the element responds to a click without
// needing a semantic judgment. Text inputs and unclassified elements do not.
func (r ElementRecord) NativelyClickable() bool {
	switch r.Kind {
	case KindButton, KindLink, KindSelect, KindCheckbox, KindRadio:
		return true
	default:
		return false
	}
}

// Describe returns a short human-readable label for logs and documentation,
// e.g. `a#nav-docs.menu-item "Documentation"`.
func (r ElementRecord) Describe() string {
	var b strings.Builder
	b.WriteString(r.TagName)
	if id := r.Attributes["id"]; id != "" {
		b.WriteString("#")
		b.WriteString(id)
	}
	if cls := r.Attributes["class"]; cls != "" {
		tokens := strings.Fields(cls)
		if len(tokens) > 2 {
			tokens = tokens[:2]
		}
		for _, tok := range tokens {
			b.WriteString(".")
			b.WriteString(tok)
		}
	}
	if text := Truncate(r.Text, 40); text != "" {
		b.WriteString(` "`)
		b.WriteString(text)
		b.WriteString(`"`)
	}
	return b.String()
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
