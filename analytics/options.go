package analytics

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nexora/nexora-analytics/browser"
	"github.com/nexora/nexora-analytics/internal/models"
	"github.com/nexora/nexora-analytics/internal/transport"
)

// Aliases for the transport contract so hosts can supply their own sender.
type (
	Sender      = transport.Sender
	SendRequest = transport.Request
	Payload     = models.Payload
	EventType   = models.EventType
)

type Option func(*Tracker)

// WithSender replaces the HTTP sender.
func WithSender(s Sender) Option {
	return func(t *Tracker) { t.sender = s }
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *Tracker) { t.httpClient = c }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger. Debug output is only emitted when the
// tracker is configured with Debug.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithTracer(tr trace.Tracer) Option {
	return func(t *Tracker) { t.tracer = tr }
}

// WithNavigationObserver overrides browser.DefaultNavigationObserver.
func WithNavigationObserver(o browser.NavigationObserver) Option {
	return func(t *Tracker) { t.observer = o }
}

// WithScrollDebounce sets the scroll debounce window (default 100ms).
func WithScrollDebounce(d time.Duration) Option {
	return func(t *Tracker) { t.scrollWait = d }
}
