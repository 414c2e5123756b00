package identity

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/nexora/nexora-analytics/browser"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func setupResolver(t *testing.T) (*Resolver, *browser.MemoryJar, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1700000000000)}
	jar := browser.NewMemoryJar(clock.Now)
	r := New(jar, Policy{Domain: ".example.com", ExpiryDays: 365}, clock.Now, nil)
	return r, jar, clock
}

func TestVisitorIdempotent(t *testing.T) {
	r, _, _ := setupResolver(t)

	first := r.Visitor()
	second := r.Visitor()
	if first == "" {
		t.Fatal("Expected non-empty visitor id")
	}
	if first != second {
		t.Errorf("Expected same visitor id, got %s and %s", first, second)
	}
}

func TestVisitorCookieAttributes(t *testing.T) {
	r, jar, clock := setupResolver(t)
	r.Visitor()

	c, ok := jar.Cookie(VisitorCookie)
	if !ok {
		t.Fatal("Expected visitor cookie to be written")
	}
	if c.Path != "/" || c.SameSite != "Lax" || c.Secure {
		t.Errorf("Unexpected attributes: %+v", c)
	}
	if c.Domain != ".example.com" {
		t.Errorf("Expected domain .example.com, got %s", c.Domain)
	}
	wantExpiry := clock.now.Add(365 * 24 * time.Hour)
	if !c.Expires.Equal(wantExpiry) {
		t.Errorf("Expected expiry %v, got %v", wantExpiry, c.Expires)
	}
}

func TestSessionRollover(t *testing.T) {
	tests := []struct {
		name      string
		idle      time.Duration
		wantNewID bool
	}{
		{name: "within timeout", idle: 29 * time.Minute, wantNewID: false},
		{name: "exactly timeout", idle: 30 * time.Minute, wantNewID: false},
		{name: "past timeout", idle: 31 * time.Minute, wantNewID: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, clock := setupResolver(t)

			first, started := r.Session(30 * time.Minute)
			if !started {
				t.Fatal("Expected first call to start a session")
			}

			clock.now = clock.now.Add(tt.idle)
			second, started := r.Session(30 * time.Minute)

			if started != tt.wantNewID {
				t.Errorf("started = %v, want %v", started, tt.wantNewID)
			}
			if (first.ID != second.ID) != tt.wantNewID {
				t.Errorf("ids %s -> %s, wantNewID %v", first.ID, second.ID, tt.wantNewID)
			}
		})
	}
}

func TestSessionActivityKeepsSessionAlive(t *testing.T) {
	r, jar, clock := setupResolver(t)
	r.Session(30 * time.Minute)

	clock.now = clock.now.Add(20 * time.Minute)
	r.Session(30 * time.Minute)
	clock.now = clock.now.Add(20 * time.Minute)

	if _, started := r.Session(30 * time.Minute); started {
		t.Error("Expected touched session to be reused")
	}

	v, _, _ := jar.Get(LastActivityCookie)
	if v != strconv.FormatInt(clock.now.UnixMilli(), 10) {
		t.Errorf("Expected last activity %d, got %s", clock.now.UnixMilli(), v)
	}
}

func TestSessionCookiesAreSessionScoped(t *testing.T) {
	r, jar, _ := setupResolver(t)
	r.Session(30 * time.Minute)

	for _, name := range []string{SessionCookie, SessionStartCookie, LastActivityCookie} {
		c, ok := jar.Cookie(name)
		if !ok {
			t.Fatalf("Expected cookie %s", name)
		}
		if !c.Session() {
			t.Errorf("Expected %s to be a session cookie, expires %v", name, c.Expires)
		}
	}

	jar.EndSession()
	if _, started := r.Session(30 * time.Minute); !started {
		t.Error("Expected a new session after the browser session ended")
	}
}

func TestOptOutCookie(t *testing.T) {
	r, _, _ := setupResolver(t)

	if r.OptedOut() {
		t.Fatal("Expected not opted out initially")
	}
	r.SetOptOut(true)
	if !r.OptedOut() {
		t.Error("Expected opted out after SetOptOut(true)")
	}
	r.SetOptOut(false)
	if r.OptedOut() {
		t.Error("Expected opt-out cleared after SetOptOut(false)")
	}
}

func TestClear(t *testing.T) {
	r, _, _ := setupResolver(t)
	v := r.Visitor()
	r.Session(30 * time.Minute)

	r.Clear()
	if got := r.Visitor(); got == v {
		t.Error("Expected a new visitor id after Clear")
	}
}

type brokenJar struct{}

func (brokenJar) Get(string) (string, bool, error) { return "", false, errors.New("storage disabled") }
func (brokenJar) Set(browser.Cookie) error         { return errors.New("storage disabled") }
func (brokenJar) Delete(string) error              { return errors.New("storage disabled") }

func TestBrokenJarDegrades(t *testing.T) {
	r := New(brokenJar{}, Policy{ExpiryDays: 365}, nil, nil)

	if id := r.Visitor(); id == "" {
		t.Error("Expected an ephemeral visitor id")
	}
	sess, started := r.Session(30 * time.Minute)
	if sess.ID == "" || !started {
		t.Errorf("Expected an ephemeral new session, got %+v started=%v", sess, started)
	}
	if r.OptedOut() {
		t.Error("Expected unreadable opt-out cookie to mean not opted out")
	}
}
