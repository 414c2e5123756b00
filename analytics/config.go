package analytics

import (
	"time"
)

const (
	DefaultEndpoint       = "/api/v1/tracking/collect"
	DefaultSessionTimeout = 30    // minutes
	DefaultBatchSize      = 10    // events
	DefaultBatchInterval  = 5000  // milliseconds
	DefaultCookieExpiry   = 365   // days
	DefaultCookieSameSite = "Lax" // SameSite attribute
)

// Config holds the tracker options. Field names follow the JSON option names
// so the same document can configure the browser snippet and a Go host.
//
// Options that default to true are pointers: nil means the default, so a
// partial Config such as Config{BatchSize: 2} keeps page views, form
// tracking and Do-Not-Track handling on. Use Bool to set them.
type Config struct {
	APIEndpoint    string `json:"apiEndpoint" yaml:"apiEndpoint"`
	TrackPageViews *bool  `json:"trackPageViews,omitempty" yaml:"trackPageViews,omitempty"`
	TrackClicks    bool   `json:"trackClicks" yaml:"trackClicks"`
	TrackForms     *bool  `json:"trackForms,omitempty" yaml:"trackForms,omitempty"`
	TrackScroll    bool   `json:"trackScroll" yaml:"trackScroll"`
	SessionTimeout int    `json:"sessionTimeout" yaml:"sessionTimeout"` // minutes
	BatchSize      int    `json:"batchSize" yaml:"batchSize"`
	BatchInterval  int    `json:"batchInterval" yaml:"batchInterval"` // milliseconds
	RespectDNT     *bool  `json:"respectDNT,omitempty" yaml:"respectDNT,omitempty"`
	CookieDomain   string `json:"cookieDomain" yaml:"cookieDomain"`
	CookieExpiry   int    `json:"cookieExpiry" yaml:"cookieExpiry"` // days
	Debug          bool   `json:"debug" yaml:"debug"`

	// RequireConsent starts the tracker without consent; nothing is sent
	// until SetConsent(true).
	RequireConsent bool   `json:"requireConsent" yaml:"requireConsent"`
	CookieSecure   bool   `json:"cookieSecure" yaml:"cookieSecure"`
	CookieSameSite string `json:"cookieSameSite" yaml:"cookieSameSite"`
}

// Bool returns a pointer to v for the optional Config switches.
func Bool(v bool) *bool {
	return &v
}

func DefaultConfig() Config {
	return Config{
		APIEndpoint:    DefaultEndpoint,
		TrackPageViews: Bool(true),
		TrackClicks:    false,
		TrackForms:     Bool(true),
		TrackScroll:    false,
		SessionTimeout: DefaultSessionTimeout,
		BatchSize:      DefaultBatchSize,
		BatchInterval:  DefaultBatchInterval,
		RespectDNT:     Bool(true),
		CookieExpiry:   DefaultCookieExpiry,
		CookieSameSite: DefaultCookieSameSite,
	}
}

// normalized replaces unset, empty or non-positive values with their
// defaults. The switches are copied so the caller's Config can change
// without affecting a running tracker.
func (c Config) normalized() Config {
	c.TrackPageViews = Bool(c.pageViews())
	c.TrackForms = Bool(c.forms())
	c.RespectDNT = Bool(c.respectDNT())
	if c.APIEndpoint == "" {
		c.APIEndpoint = DefaultEndpoint
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = DefaultBatchInterval
	}
	if c.CookieExpiry <= 0 {
		c.CookieExpiry = DefaultCookieExpiry
	}
	if c.CookieSameSite == "" {
		c.CookieSameSite = DefaultCookieSameSite
	}
	return c
}

func (c Config) pageViews() bool { return boolOr(c.TrackPageViews, true) }

func (c Config) forms() bool { return boolOr(c.TrackForms, true) }

func (c Config) respectDNT() bool { return boolOr(c.RespectDNT, true) }

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (c Config) sessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeout) * time.Minute
}

func (c Config) batchInterval() time.Duration {
	return time.Duration(c.BatchInterval) * time.Millisecond
}
