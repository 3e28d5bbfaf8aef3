// Package selector synthesizes stable CSS selectors for captured elements so
// they can be re-located on a later load of the same page template.
package selector

import (
	"strconv"
	"strings"
)

// ConvertXPath converts a simple absolute XPath of /tag and /tag[N] segments
// into an equivalent structural CSS selector joined by " > ". A positional
// index [N] becomes :nth-of-type(N), [last()] becomes :last-of-type and
// [position()>1] becomes :nth-of-type(n+2). Bracket content outside that
// grammar is dropped and the bare tag kept. The empty path converts to the
// empty selector. The conversion never touches the DOM.
func ConvertXPath(xpath string) string {
	if xpath == "" {
		return ""
	}

	var parts []string
	for _, seg := range strings.Split(xpath, "/") {
		if seg == "" {
			continue
		}

		tag := seg
		pseudo := ""
		if i := strings.Index(seg, "["); i >= 0 && strings.HasSuffix(seg, "]") {
			tag = seg[:i]
			switch idx := seg[i+1 : len(seg)-1]; idx {
			case "last()":
				pseudo = ":last-of-type"
			case "position()>1":
				pseudo = ":nth-of-type(n+2)"
			default:
				if n, err := strconv.Atoi(idx); err == nil && n > 0 {
					pseudo = ":nth-of-type(" + strconv.Itoa(n) + ")"
				}
			}
		}
		if tag == "" {
			continue
		}

		// Colons in namespaced tags would otherwise read as a pseudo-class.
		tag = strings.ReplaceAll(tag, ":", `\:`)
		parts = append(parts, tag+pseudo)
	}

	return strings.Join(parts, " > ")
}
