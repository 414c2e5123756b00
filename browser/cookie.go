package browser

import (
	"sync"
	"time"
)

// Cookie is a single name/value pair with its storage attributes.
// A zero Expires makes it a session cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	SameSite string    `json:"sameSite,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
}

// Session reports whether the cookie lives only for the browser session.
func (c Cookie) Session() bool {
	return c.Expires.IsZero()
}

// ExpiredAt reports whether the cookie is no longer visible at now.
func (c Cookie) ExpiredAt(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// CookieJar is the page's cookie store. Any call may fail, e.g. when storage
// is disabled; callers are expected to degrade rather than propagate.
type CookieJar interface {
	Get(name string) (string, bool, error)
	Set(c Cookie) error
	Delete(name string) error
}

// SessionEnder is implemented by jars that can simulate the end of a browser
// session by dropping every session cookie.
type SessionEnder interface {
	EndSession() error
}

// MemoryJar is an in-memory CookieJar, safe for concurrent use.
type MemoryJar struct {
	mu      sync.Mutex
	cookies map[string]Cookie
	now     func() time.Time
}

// NewMemoryJar returns an empty jar. A nil now uses time.Now.
func NewMemoryJar(now func() time.Time) *MemoryJar {
	if now == nil {
		now = time.Now
	}
	return &MemoryJar{cookies: make(map[string]Cookie), now: now}
}

func (j *MemoryJar) Get(name string) (string, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	c, ok := j.cookies[name]
	if !ok {
		return "", false, nil
	}
	if c.ExpiredAt(j.now()) {
		delete(j.cookies, name)
		return "", false, nil
	}
	return c.Value, true, nil
}

// Set stores c. A cookie whose expiry is already in the past removes the entry,
// the way a browser treats max-age=0.
func (j *MemoryJar) Set(c Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if c.ExpiredAt(j.now()) {
		delete(j.cookies, c.Name)
		return nil
	}
	j.cookies[c.Name] = c
	return nil
}

func (j *MemoryJar) Delete(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.cookies, name)
	return nil
}

// Cookie returns the stored cookie including attributes.
func (j *MemoryJar) Cookie(name string) (Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	return c, ok
}

func (j *MemoryJar) EndSession() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for name, c := range j.cookies {
		if c.Session() {
			delete(j.cookies, name)
		}
	}
	return nil
}
