package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Dispatcher runs send attempts in the background. Callers never wait for
// delivery; failures are dropped on purpose and only logged in debug mode.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
	ctx    context.Context
	debug  atomic.Bool
	wg     sync.WaitGroup
}

func NewDispatcher(ctx context.Context, sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{sender: sender, logger: logger, ctx: ctx}
}

func (d *Dispatcher) SetDebug(debug bool) {
	d.debug.Store(debug)
}

// Dispatch starts one delivery attempt and returns immediately.
func (d *Dispatcher) Dispatch(req Request) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := d.sender.AttemptSend(d.ctx, req)
		if err == nil {
			return
		}
		// Telemetry is best effort: no retry, no redelivery queue.
		if d.debug.Load() {
			d.logger.Warn("send failed", "type", req.Payload.Type, "beacon", req.Beacon, "error", err)
		}
	}()
}

// Wait blocks until every dispatched attempt has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
