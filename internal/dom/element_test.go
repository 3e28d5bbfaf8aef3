package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordsAssignsIndexesInCaptureOrder(t *testing.T) {
	t.Parallel()

	snaps := []ElementSnapshot{
		{TagName: "a", XPath: "/html/body/a[1]", Kind: KindLink, Href: "https://example.com/one"},
		{TagName: "button", XPath: "/html/body/button", Kind: KindButton, Text: "Save"},
		{TagName: "input", XPath: "/html/body/input", Kind: KindInput},
	}

	records := Records(snaps)
	assert.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i, rec.HighlightIndex)
		assert.Equal(t, snaps[i].TagName, rec.TagName)
	}
	assert.Equal(t, "1", records[1].ID())
	assert.NotNil(t, records[2].Attributes, "records always carry an attribute map")
}

func TestNativelyClickable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want bool
	}{
		{KindButton, true},
		{KindLink, true},
		{KindSelect, true},
		{KindCheckbox, true},
		{KindRadio, true},
		{KindInput, false},
		{KindOther, false},
	}
	for _, tt := range tests {
		rec := ElementRecord{Kind: tt.kind}
		assert.Equal(t, tt.want, rec.NativelyClickable(), "kind %s", tt.kind)
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	rec := ElementRecord{
		TagName:    "a",
		Attributes: map[string]string{"id": "nav-docs", "class": "menu-item active highlighted"},
		Text:       "Documentation",
	}
	assert.Equal(t, `a#nav-docs.menu-item.active "Documentation"`, rec.Describe())

	bare := ElementRecord{TagName: "button", Attributes: map[string]string{}}
	assert.Equal(t, "button", bare.Describe())
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exactlyten", Truncate("exactlyten", 10))
	assert.Equal(t, "0123456789...", Truncate("0123456789abc", 10))
	assert.Equal(t, "trimmed", Truncate("  trimmed  ", 10))
}
