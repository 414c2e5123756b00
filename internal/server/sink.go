package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nexora/nexora-analytics/internal/models"
)

// Delivery is one accepted payload.
type Delivery struct {
	Payload    models.Payload
	Bytes      int
	ReceivedAt time.Time
}

// Sink receives every valid payload.
type Sink interface {
	Accept(ctx context.Context, d Delivery) error
}

type SinkFunc func(ctx context.Context, d Delivery) error

func (f SinkFunc) Accept(ctx context.Context, d Delivery) error { return f(ctx, d) }

// LogSink logs a line per payload.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Accept(ctx context.Context, d Delivery) error {
	attrs := []any{
		"type", d.Payload.Type,
		"visitorId", d.Payload.Data["visitorId"],
		"size", humanize.Bytes(uint64(d.Bytes)),
	}
	if sid, ok := d.Payload.Data["sessionId"]; ok {
		attrs = append(attrs, "sessionId", sid)
	}
	if events, ok := d.Payload.Data["events"].([]any); ok {
		attrs = append(attrs, "events", len(events))
	}
	if path, ok := d.Payload.Data["path"]; ok {
		attrs = append(attrs, "path", path)
	}
	s.Logger.InfoContext(ctx, "payload received", attrs...)
	return nil
}

// Recorder keeps deliveries in memory.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *Recorder) Accept(_ context.Context, d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Counts returns the number of deliveries per payload type.
func (r *Recorder) Counts() map[models.EventType]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[models.EventType]int)
	for _, d := range r.deliveries {
		counts[d.Payload.Type]++
	}
	return counts
}

// Visitors returns the distinct visitor ids seen.
func (r *Recorder) Visitors() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	visitors := make(map[string]bool)
	for _, d := range r.deliveries {
		if v, ok := d.Payload.Data["visitorId"].(string); ok {
			visitors[v] = true
		}
	}
	return visitors
}

// Sinks fans a delivery out to several sinks, stopping at the first error.
type Sinks []Sink

func (s Sinks) Accept(ctx context.Context, d Delivery) error {
	for _, sink := range s {
		if err := sink.Accept(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
