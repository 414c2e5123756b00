// Package cookiejar persists browser cookie profiles so simulated visitors
// keep their identity across runs.
package cookiejar

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/nexora/nexora-analytics/browser"
)

// Store is a SQLite database holding any number of named cookie profiles.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the store at path. A nil now uses time.Now.
func Open(path string, now func() time.Time) (*Store, error) {
	// WAL + busy timeout so concurrent visitors don't hit "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie store: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS cookies(
	  profile    TEXT    NOT NULL,
	  name       TEXT    NOT NULL,
	  value      TEXT    NOT NULL,
	  domain     TEXT    NOT NULL DEFAULT '',
	  path       TEXT    NOT NULL DEFAULT '/',
	  expires_ms INTEGER NOT NULL DEFAULT 0,
	  same_site  TEXT    NOT NULL DEFAULT '',
	  secure     INTEGER NOT NULL DEFAULT 0 CHECK (secure IN (0, 1)),
	  updated_ms INTEGER NOT NULL,
	  PRIMARY KEY (profile, name)
	);
	CREATE INDEX IF NOT EXISTS idx_cookies_expires ON cookies(expires_ms);
	`)
	if err != nil {
		return fmt.Errorf("failed to create cookie tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Profile returns the jar for one visitor profile.
func (s *Store) Profile(name string) *SQLiteJar {
	return &SQLiteJar{store: s, profile: name}
}

// Profiles lists the stored profile names.
func (s *Store) Profiles() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT profile FROM cookies ORDER BY profile`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// PurgeExpired deletes expired persistent cookies from every profile.
func (s *Store) PurgeExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM cookies WHERE expires_ms > 0 AND expires_ms <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cookies: %w", err)
	}
	return res.RowsAffected()
}

// SQLiteJar is a browser.CookieJar backed by a Store profile.
type SQLiteJar struct {
	store   *Store
	profile string
}

func (j *SQLiteJar) Get(name string) (string, bool, error) {
	var value string
	var expiresMS int64
	err := j.store.db.QueryRow(
		`SELECT value, expires_ms FROM cookies WHERE profile = ? AND name = ?`,
		j.profile, name,
	).Scan(&value, &expiresMS)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cookie %s: %w", name, err)
	}
	if expiresMS > 0 && expiresMS <= j.store.now().UnixMilli() {
		return "", false, j.Delete(name)
	}
	return value, true, nil
}

func (j *SQLiteJar) Set(c browser.Cookie) error {
	if err := ValidateCookie(c); err != nil {
		return fmt.Errorf("invalid cookie: %w", err)
	}
	now := j.store.now()
	if c.ExpiredAt(now) {
		return j.Delete(c.Name)
	}

	var expiresMS int64
	if !c.Session() {
		expiresMS = c.Expires.UnixMilli()
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	_, err := j.store.db.Exec(`
	INSERT INTO cookies(profile, name, value, domain, path, expires_ms, same_site, secure, updated_ms)
	VALUES(?,?,?,?,?,?,?,?,?)
	ON CONFLICT(profile, name) DO UPDATE SET
	  value = excluded.value,
	  domain = excluded.domain,
	  path = excluded.path,
	  expires_ms = excluded.expires_ms,
	  same_site = excluded.same_site,
	  secure = excluded.secure,
	  updated_ms = excluded.updated_ms`,
		j.profile, c.Name, c.Value, c.Domain, path, expiresMS, c.SameSite, boolToInt(c.Secure), now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cookie %s: %w", c.Name, err)
	}
	return nil
}

func (j *SQLiteJar) Delete(name string) error {
	if _, err := j.store.db.Exec(`DELETE FROM cookies WHERE profile = ? AND name = ?`, j.profile, name); err != nil {
		return fmt.Errorf("failed to delete cookie %s: %w", name, err)
	}
	return nil
}

// EndSession drops the profile's session cookies, as closing the browser
// would.
func (j *SQLiteJar) EndSession() error {
	if _, err := j.store.db.Exec(`DELETE FROM cookies WHERE profile = ? AND expires_ms = 0`, j.profile); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// Cookies returns the profile's live cookies ordered by name.
func (j *SQLiteJar) Cookies() ([]browser.Cookie, error) {
	rows, err := j.store.db.Query(`
	SELECT name, value, domain, path, expires_ms, same_site, secure
	FROM cookies
	WHERE profile = ? AND (expires_ms = 0 OR expires_ms > ?)
	ORDER BY name`, j.profile, j.store.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer rows.Close()

	var cookies []browser.Cookie
	for rows.Next() {
		var c browser.Cookie
		var expiresMS int64
		var secure int
		if err := rows.Scan(&c.Name, &c.Value, &c.Domain, &c.Path, &expiresMS, &c.SameSite, &secure); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		if expiresMS > 0 {
			c.Expires = time.UnixMilli(expiresMS)
		}
		c.Secure = secure == 1
		cookies = append(cookies, c)
	}
	return cookies, rows.Err()
}

// ValidateCookie rejects names and values a browser would refuse to store.
func ValidateCookie(c browser.Cookie) error {
	if c.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(c.Name, "()<>@,;:\\\"/[]?={} \t\r\n") {
		return fmt.Errorf("invalid cookie name: %q", c.Name)
	}
	if strings.ContainsAny(c.Value, ";,\" \\\t\r\n") {
		return fmt.Errorf("invalid value for cookie %s", c.Name)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
