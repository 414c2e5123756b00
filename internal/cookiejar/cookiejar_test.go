package cookiejar

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nexora/nexora-analytics/browser"
	"github.com/nexora/nexora-analytics/internal/identity"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func setupTestStore(t *testing.T) (*Store, *fakeClock, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "nexora-jar-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	clock := &fakeClock{now: time.UnixMilli(1700000000000)}
	store, err := Open(filepath.Join(tmpDir, "cookies.db"), clock.Now)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open cookie store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, clock, cleanup
}

func TestOpen(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	if store.db == nil {
		t.Fatal("Expected non-nil sql.DB")
	}
}

func TestValidateCookie(t *testing.T) {
	tests := []struct {
		name      string
		cookie    browser.Cookie
		wantError bool
	}{
		{name: "valid", cookie: browser.Cookie{Name: "_nxa_visitor", Value: "abc-123"}, wantError: false},
		{name: "empty value", cookie: browser.Cookie{Name: "_nxa_opt_out"}, wantError: false},
		{name: "empty name", cookie: browser.Cookie{Value: "x"}, wantError: true},
		{name: "separator in name", cookie: browser.Cookie{Name: "a=b", Value: "x"}, wantError: true},
		{name: "semicolon in value", cookie: browser.Cookie{Name: "a", Value: "x;y"}, wantError: true},
		{name: "space in value", cookie: browser.Cookie{Name: "a", Value: "x y"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCookie(tt.cookie)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateCookie() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestSQLiteJarSetGetDelete(t *testing.T) {
	store, clock, cleanup := setupTestStore(t)
	defer cleanup()
	jar := store.Profile("visitor-1")

	if _, ok, err := jar.Get("missing"); ok || err != nil {
		t.Fatalf("Expected missing cookie, got ok=%v err=%v", ok, err)
	}

	err := jar.Set(browser.Cookie{Name: "_nxa_visitor", Value: "v1", Path: "/", SameSite: "Lax", Expires: clock.now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok, err := jar.Get("_nxa_visitor"); !ok || err != nil || v != "v1" {
		t.Errorf("Expected v1, got %q ok=%v err=%v", v, ok, err)
	}

	// Upsert replaces the value.
	if err := jar.Set(browser.Cookie{Name: "_nxa_visitor", Value: "v2", Expires: clock.now.Add(time.Hour)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _, _ := jar.Get("_nxa_visitor"); v != "v2" {
		t.Errorf("Expected v2 after overwrite, got %q", v)
	}

	if err := jar.Delete("_nxa_visitor"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := jar.Get("_nxa_visitor"); ok {
		t.Error("Expected cookie to be deleted")
	}

	if err := jar.Set(browser.Cookie{Name: "bad;name", Value: "x"}); err == nil {
		t.Error("Expected invalid cookie to be rejected")
	}
}

func TestSQLiteJarExpiry(t *testing.T) {
	store, clock, cleanup := setupTestStore(t)
	defer cleanup()
	jar := store.Profile("visitor-1")

	jar.Set(browser.Cookie{Name: "short", Value: "1", Expires: clock.now.Add(time.Minute)})
	jar.Set(browser.Cookie{Name: "long", Value: "1", Expires: clock.now.Add(time.Hour)})

	clock.now = clock.now.Add(2 * time.Minute)
	if _, ok, _ := jar.Get("short"); ok {
		t.Error("Expected expired cookie to be gone")
	}
	if _, ok, _ := jar.Get("long"); !ok {
		t.Error("Expected unexpired cookie to remain")
	}

	// Setting an expiry in the past deletes.
	jar.Set(browser.Cookie{Name: "long", Value: "1", Expires: clock.now.Add(-time.Second)})
	if _, ok, _ := jar.Get("long"); ok {
		t.Error("Expected past expiry to delete the cookie")
	}
}

func TestSQLiteJarEndSessionAndProfiles(t *testing.T) {
	store, clock, cleanup := setupTestStore(t)
	defer cleanup()
	a := store.Profile("a")
	b := store.Profile("b")

	a.Set(browser.Cookie{Name: "_nxa_session", Value: "s1"})
	a.Set(browser.Cookie{Name: "_nxa_visitor", Value: "v1", Expires: clock.now.Add(time.Hour)})
	b.Set(browser.Cookie{Name: "_nxa_session", Value: "s2"})

	if err := a.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if _, ok, _ := a.Get("_nxa_session"); ok {
		t.Error("Expected session cookie to be dropped")
	}
	if _, ok, _ := a.Get("_nxa_visitor"); !ok {
		t.Error("Expected persistent cookie to survive EndSession")
	}
	if v, _, _ := b.Get("_nxa_session"); v != "s2" {
		t.Errorf("Expected other profile untouched, got %q", v)
	}

	profiles, err := store.Profiles()
	if err != nil {
		t.Fatalf("Profiles failed: %v", err)
	}
	if len(profiles) != 2 || profiles[0] != "a" || profiles[1] != "b" {
		t.Errorf("Expected profiles [a b], got %v", profiles)
	}

	cookies, err := a.Cookies()
	if err != nil {
		t.Fatalf("Cookies failed: %v", err)
	}
	if len(cookies) != 1 || cookies[0].Name != "_nxa_visitor" || cookies[0].Session() {
		t.Errorf("Unexpected cookies: %+v", cookies)
	}
}

func TestPurgeExpired(t *testing.T) {
	store, clock, cleanup := setupTestStore(t)
	defer cleanup()
	jar := store.Profile("a")

	jar.Set(browser.Cookie{Name: "old", Value: "1", Expires: clock.now.Add(time.Minute)})
	jar.Set(browser.Cookie{Name: "session", Value: "1"})
	clock.now = clock.now.Add(time.Hour)

	n, err := store.PurgeExpired()
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 purged cookie, got %d", n)
	}
}

// The identity resolver keeps a visitor across reopened stores.
func TestSQLiteJarPersistsIdentity(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "cookies.db")
	clock := &fakeClock{now: time.UnixMilli(1700000000000)}

	store, err := Open(path, clock.Now)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	first := identity.New(store.Profile("p"), identity.Policy{ExpiryDays: 365}, clock.Now, nil).Visitor()
	store.Close()

	store, err = Open(path, clock.Now)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer store.Close()
	second := identity.New(store.Profile("p"), identity.Policy{ExpiryDays: 365}, clock.Now, nil).Visitor()

	if first != second {
		t.Errorf("Expected visitor %s to persist, got %s", first, second)
	}
}

func setupRedisJar(t *testing.T) (*RedisJar, *fakeClock) {
	t.Helper()
	addr := os.Getenv("NEXORA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NEXORA_TEST_REDIS_ADDR not set")
	}
	client, err := DialRedis(RedisConfig{Address: addr})
	if err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}
	prefix := "nexora:test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	clock := &fakeClock{now: time.Now()}
	return NewRedisJar(client, "p", RedisConfig{Prefix: prefix}, clock.Now), clock
}

func TestRedisJar(t *testing.T) {
	jar, clock := setupRedisJar(t)

	if err := jar.Set(browser.Cookie{Name: "_nxa_visitor", Value: "v1", Expires: clock.now.Add(time.Hour)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := jar.Set(browser.Cookie{Name: "_nxa_session", Value: "s1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok, err := jar.Get("_nxa_visitor"); !ok || err != nil || v != "v1" {
		t.Errorf("Expected v1, got %q ok=%v err=%v", v, ok, err)
	}

	if err := jar.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if _, ok, _ := jar.Get("_nxa_session"); ok {
		t.Error("Expected session cookie to be dropped")
	}
	if _, ok, _ := jar.Get("_nxa_visitor"); !ok {
		t.Error("Expected persistent cookie to survive EndSession")
	}

	if err := jar.Delete("_nxa_visitor"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := jar.Get("_nxa_visitor"); ok {
		t.Error("Expected cookie to be deleted")
	}
}
