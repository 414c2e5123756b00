package analytics

import (
	"maps"
	"math"
	"time"

	"github.com/nexora/nexora-analytics/browser"
	"github.com/nexora/nexora-analytics/internal/capture"
	"github.com/nexora/nexora-analytics/internal/environment"
	"github.com/nexora/nexora-analytics/internal/identity"
	"github.com/nexora/nexora-analytics/internal/models"
)

// Page records a page view. An empty path uses the current location; a
// "title" property overrides the document title.
func (t *Tracker) Page(path string, props map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()
	t.pageView(path, props)
}

func (t *Tracker) pageView(path string, props map[string]any) {
	if !t.canTrack() {
		return
	}
	t.resolveSession()

	loc := t.host.Location()
	if path == "" {
		path = pathOf(loc)
	}
	title := t.host.Title()
	if v, ok := props["title"].(string); ok && v != "" {
		title = v
	}

	t.pageEntry = t.now()
	t.currentPath = path
	t.scroll.Reset()

	data := make(map[string]any, len(props)+8)
	maps.Copy(data, props)
	maps.Copy(data, map[string]any{
		"visitorId": t.visitorID,
		"sessionId": t.sessionID,
		"path":      path,
		"url":       loc,
		"title":     title,
		"referrer":  environment.Referrer(t.host.Referrer(), loc),
		"timestamp": t.pageEntry.UnixMilli(),
	})
	t.send(models.TypePageView, data, false)
}

// pageLeave reports time on page and scroll depth for the current page view
// over the beacon path. It fires at most once per page view.
func (t *Tracker) pageLeave() {
	if !t.canTrack() || t.pageEntry.IsZero() {
		return
	}
	now := t.now()
	seconds := int64(math.Round(now.Sub(t.pageEntry).Seconds()))
	t.pageEntry = time.Time{}

	t.send(models.TypePageLeave, map[string]any{
		"visitorId":   t.visitorID,
		"sessionId":   t.sessionID,
		"path":        t.currentPath,
		"url":         t.host.Location(),
		"timeOnPage":  seconds,
		"scrollDepth": t.scroll.Max(),
		"timestamp":   now.UnixMilli(),
	}, true)
}

// checkRoute turns a same-document navigation into page.leave for the old
// path and page.view for the new one.
func (t *Tracker) checkRoute() {
	if !t.canTrack() {
		return
	}
	path := pathOf(t.host.Location())
	if path == t.currentPath {
		return
	}
	t.pageLeave()
	if t.config.pageViews() {
		t.pageView("", nil)
		return
	}
	t.currentPath = path
}

func (t *Tracker) onVisibilityChange() {
	switch t.host.VisibilityState() {
	case browser.Hidden:
		t.pageLeave()
		if t.canTrack() {
			t.flush(true)
		}
	case browser.Visible:
		// Returning to the tab starts a new stint on the same page view.
		if t.canTrack() && t.pageEntry.IsZero() && t.currentPath != "" && t.config.pageViews() {
			t.pageEntry = t.now()
		}
	}
}

func (t *Tracker) onUnload() {
	t.pageLeave()
	if t.canTrack() {
		t.flushAll(true)
	}
}

func (t *Tracker) recordScroll() {
	if !t.canTrack() {
		return
	}
	m := t.host.ScrollMetrics()
	t.scroll.Record(capture.ScrollPercent(m.ScrollTop, m.ViewportHeight, m.DocumentHeight))
}

// TrackFormSubmit reports a form submission the host intercepted itself.
func (t *Tracker) TrackFormSubmit(form *browser.Form) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()
	t.trackForm(form)
}

func (t *Tracker) trackForm(form *browser.Form) {
	if !t.canTrack() || form == nil {
		return
	}
	t.resolveSession()
	loc := t.host.Location()
	t.send(models.TypeFormSubmit, map[string]any{
		"visitorId":  t.visitorID,
		"sessionId":  t.sessionID,
		"formId":     form.ID,
		"formName":   form.Name,
		"formAction": form.Action,
		"fields":     capture.FormFields(form),
		"url":        loc,
		"path":       pathOf(loc),
		"timestamp":  t.millis(),
	}, false)
}

func (t *Tracker) trackClick(el *browser.Element) {
	target := capture.ClickTarget(el)
	if target == nil {
		return
	}
	t.track("click", capture.ClickProperties(target))
}

// listen wires the host listeners once per tracker.
func (t *Tracker) listen() {
	if t.listening {
		return
	}
	t.listening = true
	h := t.host

	h.AddEventListener(browser.EventVisibilityChange, t.listener(func(browser.Event) { t.onVisibilityChange() }))
	h.AddEventListener(browser.EventBeforeUnload, t.listener(func(browser.Event) { t.onUnload() }))

	obs := t.observer
	if obs == nil {
		obs = browser.DefaultNavigationObserver(h)
	}
	obs.Observe(t.guarded(t.checkRoute))

	if t.config.TrackScroll {
		t.debounce = capture.NewDebouncer(t.scrollWait, t.guarded(t.recordScroll))
		h.AddEventListener(browser.EventScroll, func(browser.Event) { t.debounce.Trigger() })
	}
	if t.config.forms() {
		h.AddEventListener(browser.EventSubmit, t.listener(func(ev browser.Event) { t.trackForm(ev.Form) }))
	}
	if t.config.TrackClicks {
		h.AddEventListener(browser.EventClick, t.listener(func(ev browser.Event) { t.trackClick(ev.Target) }))
	}
}

func (t *Tracker) listener(fn func(browser.Event)) browser.Listener {
	return func(ev browser.Event) {
		t.mu.Lock()
		defer t.mu.Unlock()
		defer t.recoverPanic()
		fn(ev)
	}
}

func (t *Tracker) sessionStartData(sess identity.Session) map[string]any {
	loc := t.host.Location()
	data := map[string]any{
		"visitorId":   t.visitorID,
		"sessionId":   sess.ID,
		"startedAt":   sess.Start.UnixMilli(),
		"landingPage": loc,
		"referrer":    environment.Referrer(t.host.Referrer(), loc),
		"timestamp":   t.millis(),
	}
	maps.Copy(data, environment.DeviceInfo(t.host).Fields())
	maps.Copy(data, environment.UTMParams(loc).Fields())
	return data
}
