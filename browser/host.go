// Package browser describes the page environment the tracker runs in.
//
// A Host stands in for the browser document: it exposes location, navigator
// and screen facts, a cookie jar, and DOM-style event listeners. Page is an
// in-process implementation used for headless visits and tests.
package browser

// EventKind names a lifecycle or DOM signal a Host can deliver.
type EventKind string

const (
	EventVisibilityChange EventKind = "visibilitychange"
	EventBeforeUnload     EventKind = "beforeunload"
	EventPopState         EventKind = "popstate"
	EventNavigateSuccess  EventKind = "navigatesuccess"
	EventScroll           EventKind = "scroll"
	EventSubmit           EventKind = "submit"
	EventClick            EventKind = "click"
)

// Visibility mirrors document.visibilityState.
type Visibility string

const (
	Visible Visibility = "visible"
	Hidden  Visibility = "hidden"
)

// Event is delivered to listeners. Target is set for clicks, Form for submits.
type Event struct {
	Kind   EventKind
	Target *Element
	Form   *Form
}

// Listener handles a single Event.
type Listener func(Event)

// EventTarget accepts listeners. Listeners for one kind run in registration order.
type EventTarget interface {
	AddEventListener(kind EventKind, fn Listener)
}

// Navigator carries the user-agent facts a page can read.
type Navigator struct {
	UserAgent  string
	Language   string
	DoNotTrack string // "1", "yes", "0", "unspecified" or empty
	TimeZone   string // IANA name, e.g. "Europe/Berlin"
}

// DoNotTrackEnabled reports whether the DNT signal asks not to be tracked.
func (n Navigator) DoNotTrackEnabled() bool {
	return n.DoNotTrack == "1" || n.DoNotTrack == "yes"
}

// Size is a width/height pair in CSS pixels.
type Size struct {
	Width  int
	Height int
}

// ScrollMetrics is the vertical scroll state of the document.
type ScrollMetrics struct {
	ScrollTop      int
	ViewportHeight int
	DocumentHeight int
}

// Beaconer delivers a payload that must survive page teardown.
// SendBeacon returns false when the user agent refused to queue the data.
type Beaconer interface {
	SendBeacon(url, contentType string, body []byte) bool
}

// Host is the page environment.
type Host interface {
	EventTarget

	Location() string
	Title() string
	Referrer() string
	Navigator() Navigator
	Screen() Size
	Viewport() Size
	VisibilityState() Visibility
	ScrollMetrics() ScrollMetrics
	Cookies() CookieJar

	// Beacon returns nil when the host has no beacon capability.
	Beacon() Beaconer
}
