package selector

import (
	"regexp"
	"strings"

	"github.com/taotie111/browser-use/internal/dom"
)

// validClassName accepts class tokens that are plain CSS identifiers.
// Tokens with escapes, leading digits or other oddities are skipped rather
// than escaped.
var validClassName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// safeAttributes are element attributes stable enough to survive a reload of
// the same template, appended to the selector in this order.
var safeAttributes = []string{
	"name", "type", "placeholder",
	"aria-label", "aria-labelledby", "aria-describedby",
	"role", "for", "autocomplete", "required", "readonly",
	"alt", "title", "src", "href", "target",
}

// dynamicAttributes are test/framework hooks that stay stable within one
// deployment but churn across builds. They participate only when requested.
var dynamicAttributes = []string{"data-id", "data-qa", "data-cy", "data-testid"}

// substringMatch marks attributes whose values tolerate partial
// normalization and therefore match by substring instead of equality.
var substringMatch = map[string]bool{
	"placeholder": true,
	"title":       true,
	"alt":         true,
}

// ForElement synthesizes a stable CSS selector for a captured element:
// the structural selector of its path, then class predicates in source
// order, then an exact [id="…"] predicate, then safe (and optionally
// dynamic) attribute predicates in a fixed order. The id predicate form
// sidesteps CSS identifier escaping for unusual id values.
func ForElement(rec dom.ElementRecord, includeDynamic bool) string {
	var b strings.Builder
	b.WriteString(ConvertXPath(rec.XPath))

	if cls := rec.Attributes["class"]; cls != "" {
		for _, tok := range strings.Fields(cls) {
			if validClassName.MatchString(tok) {
				b.WriteByte('.')
				b.WriteString(tok)
			}
		}
	}

	if id := rec.Attributes["id"]; id != "" {
		writePredicate(&b, "id", id, false)
	}

	names := safeAttributes
	if includeDynamic {
		names = make([]string, 0, len(safeAttributes)+len(dynamicAttributes))
		names = append(names, safeAttributes...)
		names = append(names, dynamicAttributes...)
	}
	for _, name := range names {
		v := rec.Attributes[name]
		if v == "" {
			continue
		}
		writePredicate(&b, name, v, substringMatch[name])
	}

	return b.String()
}

// writePredicate appends [name="value"] or [name*="value"]. Values holding
// characters that break attribute selectors are whitespace-collapsed and
// demoted to substring match; embedded double quotes are backslash-escaped.
func writePredicate(b *strings.Builder, name, value string, substring bool) {
	if strings.ContainsAny(value, "\"'<>`\n\r\t") {
		value = strings.Join(strings.Fields(value), " ")
		substring = true
	}
	value = strings.ReplaceAll(value, `"`, `\"`)

	op := `="`
	if substring {
		op = `*="`
	}
	b.WriteByte('[')
	b.WriteString(name)
	b.WriteString(op)
	b.WriteString(value)
	b.WriteString(`"]`)
}
