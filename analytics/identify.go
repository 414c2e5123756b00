package analytics

import (
	"maps"

	"github.com/nexora/nexora-analytics/internal/models"
)

// Traits describe a known user. Either Email or UserID is required.
type Traits struct {
	Email     string
	UserID    string
	FirstName string
	LastName  string
	Phone     string
	Company   string

	// Extra carries custom traits. Named fields win on conflict.
	Extra map[string]any
}

// TraitsFromMap reads traits keyed the way the JSON snippet passes them
// (email, userId, firstName, lastName, phone, company); other keys land in
// Extra.
func TraitsFromMap(m map[string]any) Traits {
	var tr Traits
	for k, v := range m {
		s, isString := v.(string)
		switch {
		case k == "email" && isString:
			tr.Email = s
		case k == "userId" && isString:
			tr.UserID = s
		case k == "firstName" && isString:
			tr.FirstName = s
		case k == "lastName" && isString:
			tr.LastName = s
		case k == "phone" && isString:
			tr.Phone = s
		case k == "company" && isString:
			tr.Company = s
		default:
			if tr.Extra == nil {
				tr.Extra = make(map[string]any)
			}
			tr.Extra[k] = v
		}
	}
	return tr
}

func (tr Traits) fields() map[string]any {
	out := make(map[string]any, len(tr.Extra)+6)
	maps.Copy(out, tr.Extra)
	for k, v := range map[string]string{
		"email":     tr.Email,
		"userId":    tr.UserID,
		"firstName": tr.FirstName,
		"lastName":  tr.LastName,
		"phone":     tr.Phone,
		"company":   tr.Company,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Identify links the current visitor to a known user.
func (t *Tracker) Identify(traits Traits) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()

	if !t.canTrack() {
		return
	}
	if traits.Email == "" && traits.UserID == "" {
		t.logger.Error("nexora: identify requires email or userId")
		return
	}
	t.resolveSession()

	data := traits.fields()
	data["visitorId"] = t.visitorID
	data["sessionId"] = t.sessionID
	data["timestamp"] = t.millis()
	t.send(models.TypeUserIdentify, data, false)
}
