// Package transport ships tracker payloads to the collection endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexora/nexora-analytics/browser"
	"github.com/nexora/nexora-analytics/internal/models"
)

const (
	contentTypeJSON = "application/json"
	tracerName      = "github.com/nexora/nexora-analytics/internal/transport"

	defaultTimeout = 30 * time.Second
)

// ErrBeaconRejected means the user agent refused to queue a beacon,
// typically because the payload was too large.
var ErrBeaconRejected = errors.New("beacon rejected by user agent")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collect endpoint returned status %d", e.Code)
}

// Request is one send attempt.
type Request struct {
	Endpoint string
	Payload  models.Payload
	Beacon   bool // prefer the beacon path when available
}

// Sender performs a single delivery attempt and reports its outcome.
type Sender interface {
	AttemptSend(ctx context.Context, req Request) error
}

// HTTP sends payloads as JSON POSTs, or as beacons when requested and the
// host supports them.
type HTTP struct {
	client *http.Client
	beacon browser.Beaconer
	tracer trace.Tracer
}

// NewHTTP builds an HTTP sender. A nil client uses a client with a 30s
// timeout; a nil beacon disables the beacon path; a nil tracer uses the
// global tracer provider.
func NewHTTP(client *http.Client, beacon browser.Beaconer, tracer trace.Tracer) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &HTTP{client: client, beacon: beacon, tracer: tracer}
}

func (h *HTTP) AttemptSend(ctx context.Context, req Request) (err error) {
	useBeacon := req.Beacon && h.beacon != nil
	ctx, span := h.tracer.Start(ctx, "nexora.tracker.send", trace.WithAttributes(
		attribute.String("nexora.event_type", string(req.Payload.Type)),
		attribute.Bool("nexora.beacon", useBeacon),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	if useBeacon {
		if !h.beacon.SendBeacon(req.Endpoint, contentTypeJSON, body) {
			return ErrBeaconRejected
		}
		return nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to post payload: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// ResolveEndpoint resolves a possibly relative endpoint against the page
// location, the way fetch resolves URLs against the document. On failure the
// endpoint is returned unchanged.
func ResolveEndpoint(pageURL, endpoint string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return endpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return base.ResolveReference(ref).String()
}
