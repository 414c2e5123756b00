package browser

import "sync"

// NavigationObserver reports same-document navigations (single-page-app route
// changes). The callback runs after the host location has been updated.
type NavigationObserver interface {
	Observe(fn func())
}

// History is the pushState half of the history API.
type History interface {
	PushState(state any, url string)
}

// HistoryPatcher is implemented by hosts that let callers wrap their History,
// the Go counterpart of overriding history.pushState.
type HistoryPatcher interface {
	PatchHistory(wrap func(History) History)
}

// NavigationAPISupported is implemented by hosts that deliver
// EventNavigateSuccess for every committed navigation, traversals included.
type NavigationAPISupported interface {
	SupportsNavigationAPI() bool
}

// DefaultNavigationObserver picks the best observer the host supports: the
// navigation API when available, then the history shim, then popstate alone.
func DefaultNavigationObserver(host Host) NavigationObserver {
	if n, ok := host.(NavigationAPISupported); ok && n.SupportsNavigationAPI() {
		return NewNavigationAPI(host)
	}
	if p, ok := host.(HistoryPatcher); ok {
		return NewHistoryShim(host, p)
	}
	return NewPopStateObserver(host)
}

type observers struct {
	mu  sync.Mutex
	fns []func()
}

func (o *observers) Observe(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fns = append(o.fns, fn)
}

func (o *observers) notify() {
	o.mu.Lock()
	fns := append([]func(){}, o.fns...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// NavigationAPI observes navigatesuccess events.
type NavigationAPI struct {
	observers
}

func NewNavigationAPI(target EventTarget) *NavigationAPI {
	n := &NavigationAPI{}
	target.AddEventListener(EventNavigateSuccess, func(Event) { n.notify() })
	return n
}

// PopStateObserver only sees back/forward traversals.
type PopStateObserver struct {
	observers
}

func NewPopStateObserver(target EventTarget) *PopStateObserver {
	p := &PopStateObserver{}
	target.AddEventListener(EventPopState, func(Event) { p.notify() })
	return p
}

// HistoryShim is the compatibility path for hosts without the navigation API:
// it wraps the host History so every PushState notifies observers, and also
// listens for popstate.
type HistoryShim struct {
	observers
}

func NewHistoryShim(target EventTarget, patcher HistoryPatcher) *HistoryShim {
	s := &HistoryShim{}
	patcher.PatchHistory(func(orig History) History {
		return &shimmedHistory{orig: orig, shim: s}
	})
	target.AddEventListener(EventPopState, func(Event) { s.notify() })
	return s
}

type shimmedHistory struct {
	orig History
	shim *HistoryShim
}

func (h *shimmedHistory) PushState(state any, url string) {
	h.orig.PushState(state, url)
	h.shim.notify()
}
