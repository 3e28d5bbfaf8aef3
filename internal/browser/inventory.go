package browser

import (
	"fmt"

	"github.com/go-rod/rod"

	"github.com/taotie111/browser-use/internal/dom"
)

// inventoryJS collects the visible interactive elements of the page in
// document order per category. Each element carries its absolute XPath
// (positional indexes only where a tag repeats among siblings), its full
// attribute map, trimmed text and, for links, the resolved href. A seen set
// keyed by XPath dedupes elements matched by more than one query.
const inventoryJS = `() => {
	const out = [];
	const seen = new Set();

	function xpathFor(el) {
		const segs = [];
		let node = el;
		while (node && node.nodeType === Node.ELEMENT_NODE) {
			const tag = node.tagName.toLowerCase();
			const parent = node.parentElement;
			if (!parent) {
				segs.unshift(tag);
				break;
			}
			let pos = 0, total = 0;
			for (const child of parent.children) {
				if (child.tagName === node.tagName) {
					total++;
					if (child === node) pos = total;
				}
			}
			segs.unshift(total > 1 ? tag + '[' + pos + ']' : tag);
			node = parent;
		}
		return '/' + segs.join('/');
	}

	function push(el, kind) {
		if (!el.offsetParent) return;
		const xpath = xpathFor(el);
		if (seen.has(xpath)) return;
		seen.add(xpath);
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		out.push({
			tag: el.tagName.toLowerCase(),
			xpath: xpath,
			attributes: attrs,
			text: (el.innerText || el.value || '').trim().slice(0, 200),
			kind: kind,
			href: el.tagName === 'A' ? (el.href || '') : ''
		});
	}

	document.querySelectorAll('button, [role="button"], input[type="submit"], input[type="button"]')
		.forEach(el => push(el, 'button'));

	document.querySelectorAll('a[href]').forEach(el => {
		const href = el.getAttribute('href');
		if (!href || href.startsWith('#') || href.startsWith('javascript:')) return;
		push(el, 'link');
	});

	document.querySelectorAll('input:not([type="hidden"]):not([type="submit"]):not([type="button"]):not([type="checkbox"]):not([type="radio"]), textarea')
		.forEach(el => push(el, 'input'));

	document.querySelectorAll('select').forEach(el => push(el, 'select'));
	document.querySelectorAll('input[type="checkbox"]').forEach(el => push(el, 'checkbox'));
	document.querySelectorAll('input[type="radio"]').forEach(el => push(el, 'radio'));

	return out;
}`

// CaptureInventory evaluates the inventory script in the current tab and
// returns the snapshots in capture order.
func (s *Session) CaptureInventory() ([]dom.ElementSnapshot, error) {
	var snaps []dom.ElementSnapshot
	err := rod.Try(func() {
		result := s.page.MustEval(inventoryJS)
		for _, v := range result.Arr() {
			attrs := map[string]string{}
			for name, val := range v.Get("attributes").Map() {
				attrs[name] = val.Str()
			}
			snaps = append(snaps, dom.ElementSnapshot{
				TagName:    v.Get("tag").String(),
				XPath:      v.Get("xpath").String(),
				Attributes: attrs,
				Text:       v.Get("text").String(),
				Kind:       dom.Kind(v.Get("kind").String()),
				Href:       v.Get("href").String(),
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("capture inventory: %w", err)
	}
	return snaps, nil
}
