package models

// EventType is the payload type understood by the collection endpoint.
type EventType string

const (
	TypeSessionStart EventType = "session.start"
	TypePageView     EventType = "page.view"
	TypePageLeave    EventType = "page.leave"
	TypeEventsBatch  EventType = "events.batch"
	TypeFormSubmit   EventType = "form.submit"
	TypeUserIdentify EventType = "user.identify"
)

var validTypes = map[EventType]bool{
	TypeSessionStart: true,
	TypePageView:     true,
	TypePageLeave:    true,
	TypeEventsBatch:  true,
	TypeFormSubmit:   true,
	TypeUserIdentify: true,
}

func (t EventType) Valid() bool {
	return validTypes[t]
}

// Payload is the POST body sent to the collection endpoint.
type Payload struct {
	APIKey string         `json:"apiKey"`
	Type   EventType      `json:"type"`
	Data   map[string]any `json:"data"` // always carries visitorId
}

// Event is a custom event waiting in the batching queue.
type Event struct {
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
	VisitorID  string         `json:"visitorId"`
	SessionID  string         `json:"sessionId"`
	Timestamp  int64          `json:"timestamp"` // epoch ms
	URL        string         `json:"url"`
	Path       string         `json:"path"`
}

// Batch is the data of an events.batch payload.
type Batch struct {
	VisitorID string  `json:"visitorId"`
	SessionID string  `json:"sessionId"`
	Events    []Event `json:"events"`
}

// Data flattens the batch into payload data.
func (b Batch) Data() map[string]any {
	return map[string]any{
		"visitorId": b.VisitorID,
		"sessionId": b.SessionID,
		"events":    b.Events,
	}
}
