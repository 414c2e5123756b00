package models

import (
	"encoding/json"
	"testing"
)

func TestEventTypeValid(t *testing.T) {
	for _, typ := range []EventType{
		TypeSessionStart, TypePageView, TypePageLeave,
		TypeEventsBatch, TypeFormSubmit, TypeUserIdentify,
	} {
		if !typ.Valid() {
			t.Errorf("Expected %s to be valid", typ)
		}
	}
	for _, typ := range []EventType{"", "track", "page.views"} {
		if typ.Valid() {
			t.Errorf("Expected %q to be invalid", typ)
		}
	}
}

func TestPayloadWireShape(t *testing.T) {
	batch := Batch{
		VisitorID: "v-1",
		SessionID: "s-1",
		Events: []Event{
			{Event: "clicked_cta", VisitorID: "v-1", SessionID: "s-1", Timestamp: 1700000000000, Path: "/"},
		},
	}
	payload := Payload{APIKey: "key123", Type: TypeEventsBatch, Data: batch.Data()}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(jsonData, &wire); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}

	for _, key := range []string{"apiKey", "type", "data"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("Expected top-level key %q in %s", key, jsonData)
		}
	}
	if len(wire) != 3 {
		t.Errorf("Expected exactly 3 top-level keys, got %d", len(wire))
	}

	data := wire["data"].(map[string]any)
	events, ok := data["events"].([]any)
	if !ok || len(events) != 1 {
		t.Fatalf("Expected one event in data.events, got %v", data["events"])
	}
	first := events[0].(map[string]any)
	if first["event"] != "clicked_cta" || first["visitorId"] != "v-1" {
		t.Errorf("Unexpected event encoding: %v", first)
	}
}
