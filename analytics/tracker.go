// Package analytics is the Nexora tracking client: it resolves visitor and
// session identity from cookies, captures page and interaction events from a
// browser.Host and ships them to the collection endpoint.
package analytics

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nexora/nexora-analytics/browser"
	"github.com/nexora/nexora-analytics/internal/capture"
	"github.com/nexora/nexora-analytics/internal/identity"
	"github.com/nexora/nexora-analytics/internal/models"
	"github.com/nexora/nexora-analytics/internal/queue"
	"github.com/nexora/nexora-analytics/internal/transport"
)

// Version is the tracker release reported by the CLI.
const Version = "1.0.0"

const defaultScrollDebounce = 100 * time.Millisecond

// Tracker is one tracking instance bound to a host page. All methods are
// safe for concurrent use; calls, listener callbacks and timers are
// serialized so they observe a consistent state.
type Tracker struct {
	mu sync.Mutex

	host       browser.Host
	sender     Sender
	httpClient *http.Client
	tracer     trace.Tracer
	dispatcher *transport.Dispatcher
	observer   browser.NavigationObserver
	now        func() time.Time
	logger     *slog.Logger
	scrollWait time.Duration

	apiKey     string
	config     Config
	configured bool

	initialized bool
	optedOut    bool
	hasConsent  bool
	consentSet  bool
	closed      bool
	listening   bool

	identity  *identity.Resolver
	visitorID string
	sessionID string

	pageEntry   time.Time
	currentPath string
	scroll      capture.ScrollDepth

	queue    *queue.Queue[models.Event]
	ticker   *queue.Ticker
	debounce *capture.Debouncer
}

// New creates an uninitialized tracker for host. Nothing is tracked until
// Init.
func New(host browser.Host, opts ...Option) *Tracker {
	t := &Tracker{
		host:       host,
		now:        time.Now,
		scrollWait: defaultScrollDebounce,
		hasConsent: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if t.sender == nil {
		t.sender = transport.NewHTTP(t.httpClient, host.Beacon(), t.tracer)
	}
	t.dispatcher = transport.NewDispatcher(context.Background(), t.sender, t.logger)
	return t
}

// Init configures and starts the tracker. It is a no-op after the first
// successful call. An empty apiKey logs an error and leaves the tracker
// inert. The tracker is returned for chaining.
func (t *Tracker) Init(apiKey string, cfg Config) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()

	if t.initialized {
		t.debug("already initialized")
		return t
	}
	if apiKey == "" {
		t.logger.Error("nexora: init requires an API key")
		return t
	}
	t.apiKey = apiKey
	t.config = cfg.normalized()
	t.configured = true
	if !t.consentSet {
		t.hasConsent = !t.config.RequireConsent
	}
	t.dispatcher.SetDebug(t.config.Debug)
	t.identity = nil
	t.start()
	return t
}

// start runs the init flow with the stored configuration. It stops early,
// leaving the tracker configured but uninitialized, when do-not-track, the
// opt-out cookie or missing consent forbid tracking.
func (t *Tracker) start() {
	if t.closed || t.initialized {
		return
	}
	r := t.resolver()
	if t.queue == nil {
		t.queue = queue.New[models.Event](t.config.BatchSize)
	}

	if t.config.respectDNT() && t.host.Navigator().DoNotTrackEnabled() {
		t.optedOut = true
		t.debug("do not track is enabled, tracking disabled")
		return
	}
	if r.OptedOut() {
		t.optedOut = true
		t.debug("visitor opted out, tracking disabled")
		return
	}
	if !t.hasConsent {
		t.debug("waiting for consent")
		return
	}

	t.visitorID = r.Visitor()
	t.initialized = true
	t.resolveSession()
	t.listen()
	if t.ticker == nil {
		t.ticker = queue.Every(t.config.batchInterval(), t.guarded(t.onTick))
	}
	if t.config.pageViews() {
		t.pageView("", nil)
	}
	t.debug("initialized", "visitorId", t.visitorID, "sessionId", t.sessionID)
}

// resolver returns the identity resolver for the current cookie policy,
// building it on first use.
func (t *Tracker) resolver() *identity.Resolver {
	if t.identity != nil {
		return t.identity
	}
	cfg := t.config
	if !t.configured {
		cfg = DefaultConfig()
	}
	t.identity = identity.New(t.host.Cookies(), identity.Policy{
		Domain:     cfg.CookieDomain,
		ExpiryDays: cfg.CookieExpiry,
		SameSite:   cfg.CookieSameSite,
		Secure:     cfg.CookieSecure,
	}, t.now, t.debugLogger())
	return t.identity
}

// resolveSession reuses or rolls the session and refreshes last activity.
// A new session is announced with session.start.
func (t *Tracker) resolveSession() {
	sess, started := t.resolver().Session(t.config.sessionTimeout())
	t.sessionID = sess.ID
	if !started {
		return
	}
	t.send(models.TypeSessionStart, t.sessionStartData(sess), false)
}

func (t *Tracker) canTrack() bool {
	return t.initialized && !t.optedOut && t.hasConsent && !t.closed
}

// send is the single gate in front of the transport.
func (t *Tracker) send(typ models.EventType, data map[string]any, beacon bool) {
	if t.optedOut || !t.hasConsent {
		return
	}
	t.dispatcher.Dispatch(transport.Request{
		Endpoint: transport.ResolveEndpoint(t.host.Location(), t.config.APIEndpoint),
		Payload:  models.Payload{APIKey: t.apiKey, Type: typ, Data: data},
		Beacon:   beacon,
	})
}

// Track queues a custom event. It is dropped when tracking is disabled; an
// empty name is an error.
func (t *Tracker) Track(name string, props map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()
	t.track(name, props)
}

func (t *Tracker) track(name string, props map[string]any) {
	if !t.canTrack() {
		return
	}
	if name == "" {
		t.logger.Error("nexora: track requires an event name")
		return
	}
	t.resolveSession()

	// The queued event owns its properties; callers may reuse props.
	props = maps.Clone(props)
	if props == nil {
		props = map[string]any{}
	}
	loc := t.host.Location()
	ev := models.Event{
		Event:      name,
		Properties: props,
		VisitorID:  t.visitorID,
		SessionID:  t.sessionID,
		Timestamp:  t.millis(),
		URL:        loc,
		Path:       pathOf(loc),
	}
	if t.queue.Enqueue(ev) {
		t.flush(false)
	}
}

// Flush sends up to one batch of queued events now.
func (t *Tracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()
	if t.queue != nil {
		t.flush(false)
	}
}

func (t *Tracker) flush(beacon bool) {
	events := t.queue.Drain(t.config.BatchSize)
	if len(events) == 0 {
		return
	}
	batch := models.Batch{VisitorID: t.visitorID, SessionID: t.sessionID, Events: events}
	t.send(models.TypeEventsBatch, batch.Data(), beacon)
}

func (t *Tracker) flushAll(beacon bool) {
	for t.queue.Len() > 0 {
		t.flush(beacon)
	}
}

func (t *Tracker) onTick() {
	if t.closed || t.queue == nil {
		return
	}
	t.flush(false)
}

// VisitorID returns the current visitor id, empty until tracking starts.
func (t *Tracker) VisitorID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visitorID
}

// SessionID returns the current session id, empty until tracking starts.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Close tears the tracker down the way a page unload would: queued events
// are flushed over the beacon path, timers stop and in-flight sends are
// awaited. The tracker ignores every call afterwards.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if t.queue != nil && t.canTrack() {
		t.flushAll(true)
	}
	t.closed = true
	if t.ticker != nil {
		t.ticker.Stop()
	}
	if t.debounce != nil {
		t.debounce.Stop()
	}
	t.mu.Unlock()

	t.dispatcher.Wait()
}

// Wait blocks until every send started so far has finished.
func (t *Tracker) Wait() {
	t.dispatcher.Wait()
}

// guarded serializes a callback with the public API and contains panics.
func (t *Tracker) guarded(fn func()) func() {
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		defer t.recoverPanic()
		fn()
	}
}

func (t *Tracker) recoverPanic() {
	if r := recover(); r != nil {
		t.debug("recovered from panic", "panic", r)
	}
}

func (t *Tracker) debug(msg string, args ...any) {
	if t.config.Debug {
		t.logger.Debug("nexora: "+msg, args...)
	}
}

func (t *Tracker) debugLogger() *slog.Logger {
	if t.config.Debug {
		return t.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (t *Tracker) millis() int64 {
	return t.now().UnixMilli()
}

// pathOf returns the path component of a page URL, "/" when empty.
func pathOf(loc string) string {
	u, err := url.Parse(loc)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
