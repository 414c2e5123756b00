// Package identity derives and persists the visitor and session identifiers.
package identity

import (
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nexora/nexora-analytics/browser"
)

const (
	VisitorCookie      = "_nxa_visitor"
	SessionCookie      = "_nxa_session"
	SessionStartCookie = "_nxa_session_start"
	LastActivityCookie = "_nxa_last_activity"
	OptOutCookie       = "_nxa_opt_out"
)

// Policy controls the attributes of every cookie the resolver writes.
type Policy struct {
	Domain     string
	ExpiryDays int
	SameSite   string
	Secure     bool
}

// Session is the active session.
type Session struct {
	ID    string
	Start time.Time
}

// Resolver reads and writes identity cookies. Jar failures never surface:
// a failed read looks like a missing cookie, so the page falls back to a
// fresh, ephemeral identity.
type Resolver struct {
	jar    browser.CookieJar
	policy Policy
	now    func() time.Time
	logger *slog.Logger
}

func New(jar browser.CookieJar, policy Policy, now func() time.Time, logger *slog.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if policy.SameSite == "" {
		policy.SameSite = "Lax"
	}
	return &Resolver{jar: jar, policy: policy, now: now, logger: logger}
}

// Visitor returns the persisted visitor id, creating one when absent.
func (r *Resolver) Visitor() string {
	if id, ok := r.get(VisitorCookie); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	r.set(VisitorCookie, id, true)
	return id
}

// Session reuses the current session unless it is missing or has been idle
// longer than timeout. started is true when a new session was created.
// Last activity is refreshed either way.
func (r *Resolver) Session(timeout time.Duration) (sess Session, started bool) {
	now := r.now()

	id, ok := r.get(SessionCookie)
	expired := !ok || id == ""
	if !expired {
		if last, ok := r.getMillis(LastActivityCookie); ok && now.Sub(last) > timeout {
			expired = true
		}
	}

	if expired {
		sess = Session{ID: uuid.NewString(), Start: now}
		r.set(SessionCookie, sess.ID, false)
		r.set(SessionStartCookie, formatMillis(now), false)
	} else {
		sess.ID = id
		if start, ok := r.getMillis(SessionStartCookie); ok {
			sess.Start = start
		}
	}

	r.set(LastActivityCookie, formatMillis(now), false)
	return sess, expired
}

func (r *Resolver) OptedOut() bool {
	v, ok := r.get(OptOutCookie)
	return ok && v == "1"
}

func (r *Resolver) SetOptOut(optOut bool) {
	if optOut {
		r.set(OptOutCookie, "1", true)
		return
	}
	r.delete(OptOutCookie)
}

// Clear removes the visitor and session cookies.
func (r *Resolver) Clear() {
	for _, name := range []string{VisitorCookie, SessionCookie, SessionStartCookie, LastActivityCookie} {
		r.delete(name)
	}
}

func (r *Resolver) get(name string) (string, bool) {
	v, ok, err := r.jar.Get(name)
	if err != nil {
		r.logger.Debug("cookie read failed", "cookie", name, "error", err)
		return "", false
	}
	return v, ok
}

func (r *Resolver) getMillis(name string) (time.Time, bool) {
	v, ok := r.get(name)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (r *Resolver) set(name, value string, persistent bool) {
	c := browser.Cookie{
		Name:     name,
		Value:    value,
		Domain:   r.policy.Domain,
		Path:     "/",
		SameSite: r.policy.SameSite,
		Secure:   r.policy.Secure,
	}
	if persistent {
		c.Expires = r.now().Add(time.Duration(r.policy.ExpiryDays) * 24 * time.Hour)
	}
	if err := r.jar.Set(c); err != nil {
		r.logger.Debug("cookie write failed", "cookie", name, "error", err)
	}
}

func (r *Resolver) delete(name string) {
	if err := r.jar.Delete(name); err != nil {
		r.logger.Debug("cookie delete failed", "cookie", name, "error", err)
	}
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
