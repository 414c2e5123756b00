// Package capture turns page signals into event properties.
package capture

import (
	"strings"
	"unicode/utf8"

	"github.com/nexora/nexora-analytics/browser"
)

const (
	maxFieldValueLen = 200
	maxClickTextLen  = 100
)

var sensitiveKeywords = []string{"password", "creditcard", "cc", "cvv", "ssn", "token"}

// skippedFieldTypes never carry user data worth recording.
var skippedFieldTypes = map[string]bool{
	"password": true,
	"submit":   true,
	"button":   true,
	"reset":    true,
	"image":    true,
	"file":     true,
}

// IsSensitiveName reports whether a field name looks like it holds a secret.
// Separators are ignored so that "credit_card" and "credit-card" match
// "creditcard". Matching is by substring after that, so the "cc" keyword
// also excludes names such as "account", "access", "success" and "c_c".
func IsSensitiveName(name string) bool {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "", ".", "").Replace(name))
	for _, kw := range sensitiveKeywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// FormFields builds the captured field map for a submitted form.
func FormFields(form *browser.Form) map[string]any {
	fields := make(map[string]any)
	if form == nil {
		return fields
	}
	for _, f := range form.Fields {
		typ := strings.ToLower(f.Type)
		if f.Name == "" || skippedFieldTypes[typ] || IsSensitiveName(f.Name) {
			continue
		}
		switch typ {
		case "checkbox":
			fields[f.Name] = f.Checked
		case "radio":
			if f.Checked {
				fields[f.Name] = f.Value
			}
		case "email":
			v := f.Value
			if strings.Contains(v, "@") {
				v = MaskEmail(v)
			}
			fields[f.Name] = Truncate(v, maxFieldValueLen)
		default:
			fields[f.Name] = Truncate(f.Value, maxFieldValueLen)
		}
	}
	return fields
}

// MaskEmail keeps the first two characters of the local part and the domain:
// "alice@example.com" becomes "al***@example.com".
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	return Truncate(local, 2) + "***@" + domain
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
