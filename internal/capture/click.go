package capture

import (
	"strings"

	"github.com/nexora/nexora-analytics/browser"
)

const trackAttr = "data-track"

// ClickTarget returns the nearest anchor, button or data-track element at or
// above el, or nil when the click hit nothing trackable.
func ClickTarget(el *browser.Element) *browser.Element {
	return el.Closest(func(e *browser.Element) bool {
		if e.Is("a") || e.Is("button") {
			return true
		}
		_, ok := e.Attr(trackAttr)
		return ok
	})
}

// ClickProperties describes a click target as custom event properties.
func ClickProperties(el *browser.Element) map[string]any {
	props := map[string]any{
		"tagName":   strings.ToLower(el.TagName),
		"text":      Truncate(strings.TrimSpace(el.Text), maxClickTextLen),
		"href":      el.Href,
		"id":        el.ID,
		"className": el.ClassName,
	}
	if v, ok := el.Attr(trackAttr); ok {
		props["trackId"] = v
	}
	return props
}
