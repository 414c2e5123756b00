package environment

import (
	"net/url"

	"github.com/nexora/nexora-analytics/browser"
)

// Device is the environment snapshot attached to session.start.
type Device struct {
	UserAgent
	ScreenWidth    int
	ScreenHeight   int
	ViewportWidth  int
	ViewportHeight int
	Language       string
	Timezone       string
}

// DeviceInfo reads the host's current device facts.
func DeviceInfo(host browser.Host) Device {
	nav := host.Navigator()
	screen := host.Screen()
	viewport := host.Viewport()
	return Device{
		UserAgent:      ParseUserAgent(nav.UserAgent),
		ScreenWidth:    screen.Width,
		ScreenHeight:   screen.Height,
		ViewportWidth:  viewport.Width,
		ViewportHeight: viewport.Height,
		Language:       nav.Language,
		Timezone:       nav.TimeZone,
	}
}

// Fields returns the device facts as payload data.
func (d Device) Fields() map[string]any {
	return map[string]any{
		"browser":        d.Browser,
		"browserVersion": d.BrowserVersion,
		"os":             d.OS,
		"osVersion":      d.OSVersion,
		"deviceType":     d.DeviceType,
		"screenWidth":    d.ScreenWidth,
		"screenHeight":   d.ScreenHeight,
		"viewportWidth":  d.ViewportWidth,
		"viewportHeight": d.ViewportHeight,
		"language":       d.Language,
		"timezone":       d.Timezone,
	}
}

// UTM holds the five standard campaign parameters; nil means absent.
type UTM struct {
	Source   *string
	Medium   *string
	Campaign *string
	Term     *string
	Content  *string
}

// UTMParams extracts campaign parameters from rawURL's query string.
func UTMParams(rawURL string) UTM {
	var utm UTM
	u, err := url.Parse(rawURL)
	if err != nil {
		return utm
	}
	q := u.Query()
	pick := func(key string) *string {
		if !q.Has(key) {
			return nil
		}
		v := q.Get(key)
		return &v
	}
	utm.Source = pick("utm_source")
	utm.Medium = pick("utm_medium")
	utm.Campaign = pick("utm_campaign")
	utm.Term = pick("utm_term")
	utm.Content = pick("utm_content")
	return utm
}

func (u UTM) Fields() map[string]any {
	return map[string]any{
		"utmSource":   u.Source,
		"utmMedium":   u.Medium,
		"utmCampaign": u.Campaign,
		"utmTerm":     u.Term,
		"utmContent":  u.Content,
	}
}

// Referrer returns the external referrer of the page, or nil when there is
// none or it points at the page's own host. An unparsable referrer is
// returned as-is.
func Referrer(referrer, pageURL string) *string {
	if referrer == "" {
		return nil
	}
	ref, err := url.Parse(referrer)
	if err != nil {
		return &referrer
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return &referrer
	}
	if ref.Host != "" && ref.Host == page.Host {
		return nil
	}
	return &referrer
}
