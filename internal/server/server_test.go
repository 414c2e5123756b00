package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nexora/nexora-analytics/browser"
	"github.com/nexora/nexora-analytics/internal/models"
	"github.com/nexora/nexora-analytics/internal/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestServer(t *testing.T) (*Server, *Recorder) {
	t.Helper()
	recorder := &Recorder{}
	return NewServer(recorder, "127.0.0.1:0", quietLogger()), recorder
}

func postPayload(t *testing.T, s *Server, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, CollectPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleCollect(w, req)
	return w
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	return data
}

func TestNewServer(t *testing.T) {
	server, _ := setupTestServer(t)

	if server.sink == nil {
		t.Fatal("Expected non-nil sink")
	}
	if server.address != "127.0.0.1:0" {
		t.Errorf("Expected address 127.0.0.1:0, got %s", server.address)
	}
}

func TestHandleHealthz(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	server.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "ok" {
		t.Errorf("Expected body 'ok', got %s", body)
	}
}

func TestHandleCollectSuccess(t *testing.T) {
	server, recorder := setupTestServer(t)

	body := mustJSON(t, models.Payload{
		APIKey: "key123",
		Type:   models.TypePageView,
		Data:   map[string]any{"visitorId": "v-1", "sessionId": "s-1", "path": "/"},
	})
	w := postPayload(t, server, body)

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", w.Code, w.Body.String())
	}
	deliveries := recorder.Deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(deliveries))
	}
	if deliveries[0].Bytes != len(body) || deliveries[0].Payload.Data["path"] != "/" {
		t.Errorf("Unexpected delivery: %+v", deliveries[0])
	}
}

func TestHandleCollectMethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, CollectPath, nil)
	w := httptest.NewRecorder()
	server.handleCollect(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestHandleCollectInvalidJSON(t *testing.T) {
	server, _ := setupTestServer(t)

	w := postPayload(t, server, []byte(`{"apiKey": [invalid json]}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name      string
		payload   models.Payload
		wantError bool
	}{
		{
			name:      "valid page view",
			payload:   models.Payload{APIKey: "k", Type: models.TypePageView, Data: map[string]any{"visitorId": "v"}},
			wantError: false,
		},
		{
			name:      "empty api key",
			payload:   models.Payload{Type: models.TypePageView, Data: map[string]any{"visitorId": "v"}},
			wantError: true,
		},
		{
			name:      "unknown type",
			payload:   models.Payload{APIKey: "k", Type: "page.scroll", Data: map[string]any{"visitorId": "v"}},
			wantError: true,
		},
		{
			name:      "missing data",
			payload:   models.Payload{APIKey: "k", Type: models.TypePageView},
			wantError: true,
		},
		{
			name:      "missing visitor",
			payload:   models.Payload{APIKey: "k", Type: models.TypePageView, Data: map[string]any{"sessionId": "s"}},
			wantError: true,
		},
		{
			name:      "empty batch",
			payload:   models.Payload{APIKey: "k", Type: models.TypeEventsBatch, Data: map[string]any{"visitorId": "v", "events": []any{}}},
			wantError: true,
		},
		{
			name:      "batch with events",
			payload:   models.Payload{APIKey: "k", Type: models.TypeEventsBatch, Data: map[string]any{"visitorId": "v", "events": []any{map[string]any{"event": "x"}}}},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.payload)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePayload() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestHandleCollectInvalidPayload(t *testing.T) {
	server, recorder := setupTestServer(t)

	w := postPayload(t, server, mustJSON(t, models.Payload{APIKey: "k", Type: "bogus", Data: map[string]any{"visitorId": "v"}}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", w.Code)
	}
	if len(recorder.Deliveries()) != 0 {
		t.Error("Expected invalid payload not to reach the sink")
	}
}

func TestHandleCollectSinkError(t *testing.T) {
	sink := SinkFunc(func(context.Context, Delivery) error { return errors.New("disk full") })
	server := NewServer(sink, "127.0.0.1:0", quietLogger())

	w := postPayload(t, server, mustJSON(t, models.Payload{APIKey: "k", Type: models.TypePageView, Data: map[string]any{"visitorId": "v"}}))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestSetupRoutes(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.setupRoutes()

	tests := []struct {
		path   string
		method string
		status int
	}{
		{"/healthz", http.MethodGet, http.StatusOK},
		{CollectPath, http.MethodGet, http.StatusMethodNotAllowed}, // Only POST allowed
		{CollectPath, http.MethodOptions, http.StatusNoContent},   // CORS preflight
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d for %s %s, got %d", tt.status, tt.method, tt.path, w.Code)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	server, _ := setupTestServer(t)
	server.AllowOrigins("https://shop.example.com")
	handler := server.Handler()

	tests := []struct {
		origin string
		want   string
	}{
		{"https://shop.example.com", "https://shop.example.com"},
		{"https://evil.example.net", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, CollectPath, nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("Origin %s: expected allow-origin %q, got %q", tt.origin, tt.want, got)
		}
	}
}

func TestLogSink(t *testing.T) {
	var logs strings.Builder
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&logs, nil))}

	err := sink.Accept(context.Background(), Delivery{
		Payload: models.Payload{Type: models.TypeEventsBatch, Data: map[string]any{"visitorId": "v-1", "events": []any{1, 2}}},
		Bytes:   2048,
	})
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	out := logs.String()
	for _, want := range []string{"type=events.batch", "visitorId=v-1", `size="2.0 kB"`, "events=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in log line %q", want, out)
		}
	}
}

// A tracker's HTTP sender talks to the collector end to end, including the
// beacon path of a simulated page.
func TestTrackerTransportRoundTrip(t *testing.T) {
	server, recorder := setupTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	page := browser.NewPage(browser.PageConfig{URL: ts.URL + "/pricing", HTTPClient: ts.Client()})
	sender := transport.NewHTTP(ts.Client(), page.Beacon(), nil)
	endpoint := transport.ResolveEndpoint(page.Location(), CollectPath)

	payload := models.Payload{APIKey: "k", Type: models.TypePageLeave, Data: map[string]any{"visitorId": "v-1"}}
	if err := sender.AttemptSend(context.Background(), transport.Request{Endpoint: endpoint, Payload: payload}); err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	if err := sender.AttemptSend(context.Background(), transport.Request{Endpoint: endpoint, Payload: payload, Beacon: true}); err != nil {
		t.Fatalf("Beacon failed: %v", err)
	}
	page.WaitBeacons()

	if n := recorder.Counts()[models.TypePageLeave]; n != 2 {
		t.Errorf("Expected 2 page.leave deliveries, got %d", n)
	}

	bad := models.Payload{APIKey: "k", Type: models.TypePageView, Data: map[string]any{}}
	err := sender.AttemptSend(context.Background(), transport.Request{Endpoint: endpoint, Payload: bad})
	var statusErr *transport.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 status error, got %v", err)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	server, _ := setupTestServer(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Collector never became ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
