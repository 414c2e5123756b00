package browser

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
)

// MaxBeaconBytes is the payload limit user agents apply to sendBeacon.
const MaxBeaconBytes = 64 << 10

// PageConfig describes the document a Page starts with.
type PageConfig struct {
	URL            string
	Title          string
	Referrer       string
	Navigator      Navigator
	Screen         Size
	Viewport       Size
	DocumentHeight int

	// Jar defaults to a fresh MemoryJar.
	Jar CookieJar

	// NavigationAPI makes the page deliver navigatesuccess events.
	NavigationAPI bool

	// DisableBeacon removes the beacon capability.
	DisableBeacon bool

	// HTTPClient delivers beacons. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// BeaconRequest records a queued beacon.
type BeaconRequest struct {
	URL         string
	ContentType string
	Body        []byte
}

// Page is a headless document implementing Host. Event dispatch is
// synchronous: listeners run on the goroutine that triggers the event.
type Page struct {
	mu         sync.Mutex
	location   *url.URL
	title      string
	referrer   string
	navigator  Navigator
	screen     Size
	viewport   Size
	docHeight  int
	scrollTop  int
	visibility Visibility
	jar        CookieJar
	listeners  map[EventKind][]Listener
	history    History
	navAPI     bool

	beaconOff bool
	client    *http.Client
	beacons   []BeaconRequest
	inflight  sync.WaitGroup
}

// NewPage builds a visible page at cfg.URL. An unparsable URL leaves the
// location empty.
func NewPage(cfg PageConfig) *Page {
	loc, err := url.Parse(cfg.URL)
	if err != nil {
		loc = &url.URL{}
	}
	jar := cfg.Jar
	if jar == nil {
		jar = NewMemoryJar(nil)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	p := &Page{
		location:   loc,
		title:      cfg.Title,
		referrer:   cfg.Referrer,
		navigator:  cfg.Navigator,
		screen:     cfg.Screen,
		viewport:   cfg.Viewport,
		docHeight:  cfg.DocumentHeight,
		visibility: Visible,
		jar:        jar,
		listeners:  make(map[EventKind][]Listener),
		navAPI:     cfg.NavigationAPI,
		beaconOff:  cfg.DisableBeacon,
		client:     client,
	}
	p.history = pageHistory{p}
	return p
}

func (p *Page) AddEventListener(kind EventKind, fn Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[kind] = append(p.listeners[kind], fn)
}

func (p *Page) dispatch(ev Event) {
	p.mu.Lock()
	fns := append([]Listener(nil), p.listeners[ev.Kind]...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (p *Page) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location.String()
}

func (p *Page) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title
}

func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

func (p *Page) Referrer() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.referrer
}

func (p *Page) Navigator() Navigator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigator
}

func (p *Page) Screen() Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screen
}

func (p *Page) Viewport() Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport
}

func (p *Page) VisibilityState() Visibility {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visibility
}

func (p *Page) ScrollMetrics() ScrollMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ScrollMetrics{
		ScrollTop:      p.scrollTop,
		ViewportHeight: p.viewport.Height,
		DocumentHeight: p.docHeight,
	}
}

func (p *Page) Cookies() CookieJar {
	return p.jar
}

func (p *Page) Beacon() Beaconer {
	if p.beaconOff {
		return nil
	}
	return p
}

func (p *Page) SupportsNavigationAPI() bool {
	return p.navAPI
}

func (p *Page) PatchHistory(wrap func(History) History) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = wrap(p.history)
}

// SendBeacon queues body for delivery on a context detached from the page.
func (p *Page) SendBeacon(target, contentType string, body []byte) bool {
	if len(body) > MaxBeaconBytes {
		return false
	}
	p.mu.Lock()
	dest := p.resolve(target)
	p.beacons = append(p.beacons, BeaconRequest{URL: dest, ContentType: contentType, Body: body})
	p.mu.Unlock()

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, dest, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", contentType)
		resp, err := p.client.Do(req)
		if err != nil {
			return
		}
		resp.Body.Close()
	}()
	return true
}

// Beacons returns every beacon queued so far.
func (p *Page) Beacons() []BeaconRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]BeaconRequest(nil), p.beacons...)
}

// WaitBeacons blocks until queued beacons have been delivered or failed.
func (p *Page) WaitBeacons() {
	p.inflight.Wait()
}

// PushState performs a same-document navigation through the (possibly
// patched) history object.
func (p *Page) PushState(target string) {
	p.mu.Lock()
	h := p.history
	p.mu.Unlock()
	h.PushState(nil, target)
}

// Back simulates a traversal to target, firing popstate.
func (p *Page) Back(target string) {
	p.setLocation(target)
	p.dispatch(Event{Kind: EventPopState})
	p.navigated()
}

func (p *Page) ScrollTo(top int) {
	p.mu.Lock()
	p.scrollTop = top
	p.mu.Unlock()
	p.dispatch(Event{Kind: EventScroll})
}

func (p *Page) Submit(form *Form) {
	p.dispatch(Event{Kind: EventSubmit, Form: form})
}

func (p *Page) Click(el *Element) {
	p.dispatch(Event{Kind: EventClick, Target: el})
}

func (p *Page) SetVisibility(v Visibility) {
	p.mu.Lock()
	changed := p.visibility != v
	p.visibility = v
	p.mu.Unlock()
	if changed {
		p.dispatch(Event{Kind: EventVisibilityChange})
	}
}

// Unload hides the page and fires beforeunload.
func (p *Page) Unload() {
	p.SetVisibility(Hidden)
	p.dispatch(Event{Kind: EventBeforeUnload})
}

func (p *Page) setLocation(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, err := p.location.Parse(target); err == nil {
		p.location = u
	}
	p.scrollTop = 0
}

func (p *Page) navigated() {
	if p.navAPI {
		p.dispatch(Event{Kind: EventNavigateSuccess})
	}
}

// resolve must be called with p.mu held.
func (p *Page) resolve(target string) string {
	u, err := p.location.Parse(target)
	if err != nil {
		return target
	}
	return u.String()
}

type pageHistory struct {
	p *Page
}

func (h pageHistory) PushState(_ any, target string) {
	h.p.setLocation(target)
	h.p.navigated()
}
