// Package environment reads device, locale and attribution facts from the
// page. Nothing here is cached; every call reflects the host's current state.
package environment

import (
	"regexp"
	"strings"
)

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"

	unknown = "Unknown"
)

type uaRule struct {
	name string
	re   *regexp.Regexp
}

// Order matters: Edge, Opera and Samsung UAs also carry "Chrome/", and
// Chrome UAs carry "Safari/".
var browserRules = []uaRule{
	{"Edge", regexp.MustCompile(`Edg(?:e|A|iOS)?/([\d.]+)`)},
	{"Opera", regexp.MustCompile(`(?:OPR|Opera)/([\d.]+)`)},
	{"Samsung Internet", regexp.MustCompile(`SamsungBrowser/([\d.]+)`)},
	{"Chrome", regexp.MustCompile(`(?:Chrome|CriOS)/([\d.]+)`)},
	{"Firefox", regexp.MustCompile(`(?:Firefox|FxiOS)/([\d.]+)`)},
	{"Safari", regexp.MustCompile(`Version/([\d.]+).*Safari/`)},
	{"Internet Explorer", regexp.MustCompile(`(?:MSIE |Trident/.*rv:)([\d.]+)`)},
}

// iOS before macOS ("like Mac OS X"), Android before Linux.
var osRules = []uaRule{
	{"Windows", regexp.MustCompile(`Windows NT ([\d.]+)`)},
	{"iOS", regexp.MustCompile(`(?:iPhone|iPad|iPod).*? OS ([\d_]+)`)},
	{"Android", regexp.MustCompile(`Android ([\d.]+)`)},
	{"macOS", regexp.MustCompile(`Mac OS X ([\d_.]+)`)},
	{"Chrome OS", regexp.MustCompile(`CrOS [\w]+ ([\d.]+)`)},
	{"Linux", regexp.MustCompile(`Linux()`)},
}

var windowsVersions = map[string]string{
	"10.0": "10",
	"6.3":  "8.1",
	"6.2":  "8",
	"6.1":  "7",
	"6.0":  "Vista",
	"5.1":  "XP",
}

var (
	tabletRe = regexp.MustCompile(`(?i)iPad|Tablet|PlayBook|Silk`)
	mobileRe = regexp.MustCompile(`(?i)Mobi|iPhone|iPod|Android.*Mobile|BlackBerry|IEMobile|Opera Mini`)
)

// UserAgent is the parsed form of a user-agent string.
type UserAgent struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     string
}

func ParseUserAgent(ua string) UserAgent {
	parsed := UserAgent{
		Browser:    unknown,
		OS:         unknown,
		DeviceType: deviceType(ua),
	}

	for _, rule := range browserRules {
		if m := rule.re.FindStringSubmatch(ua); m != nil {
			parsed.Browser = rule.name
			parsed.BrowserVersion = m[1]
			break
		}
	}

	for _, rule := range osRules {
		m := rule.re.FindStringSubmatch(ua)
		if m == nil {
			continue
		}
		parsed.OS = rule.name
		parsed.OSVersion = strings.ReplaceAll(m[1], "_", ".")
		if rule.name == "Windows" {
			if v, ok := windowsVersions[m[1]]; ok {
				parsed.OSVersion = v
			}
		}
		break
	}

	return parsed
}

func deviceType(ua string) string {
	switch {
	case isTablet(ua):
		return DeviceTablet
	case mobileRe.MatchString(ua):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// Android tablets are Android UAs without the "Mobile" token.
func isTablet(ua string) bool {
	if tabletRe.MatchString(ua) {
		return true
	}
	return strings.Contains(ua, "Android") && !strings.Contains(ua, "Mobile")
}
