package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownMethod = errors.New("unknown method")

// Call is one buffered API call, named the way the loader snippet names
// them: init, page, track, identify, setConsent, optOut, optIn, reset.
type Call struct {
	Method string
	Args   []any
}

// CallQueue buffers calls made before a tracker exists.
type CallQueue struct {
	mu    sync.Mutex
	calls []Call
}

func (q *CallQueue) Push(method string, args ...any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, Call{Method: method, Args: args})
}

func (q *CallQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Replay applies the buffered calls to t in order and empties the queue.
// Calls that fail are logged and skipped. It returns the number applied.
func (q *CallQueue) Replay(t *Tracker) int {
	q.mu.Lock()
	calls := q.calls
	q.calls = nil
	q.mu.Unlock()

	applied := 0
	for _, c := range calls {
		if err := t.Apply(c); err != nil {
			t.logger.Error("nexora: failed to replay call", "method", c.Method, "error", err)
			continue
		}
		applied++
	}
	return applied
}

// Apply dispatches a Call to the matching method.
func (t *Tracker) Apply(c Call) error {
	switch c.Method {
	case "init":
		key, err := stringArg(c.Args, 0)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		cfg := DefaultConfig()
		if len(c.Args) > 1 {
			if cfg, err = configArg(c.Args[1]); err != nil {
				return fmt.Errorf("init: %w", err)
			}
		}
		t.Init(key, cfg)
	case "page":
		var path string
		if len(c.Args) > 0 {
			if s, ok := c.Args[0].(string); ok {
				path = s
			}
		}
		t.Page(path, mapArg(c.Args, 1))
	case "track":
		name, err := stringArg(c.Args, 0)
		if err != nil {
			return fmt.Errorf("track: %w", err)
		}
		t.Track(name, mapArg(c.Args, 1))
	case "identify":
		if len(c.Args) == 0 {
			return errors.New("identify: missing traits")
		}
		switch v := c.Args[0].(type) {
		case Traits:
			t.Identify(v)
		case map[string]any:
			t.Identify(TraitsFromMap(v))
		default:
			return fmt.Errorf("identify: unsupported traits type %T", v)
		}
	case "setConsent":
		if len(c.Args) == 0 {
			return errors.New("setConsent: missing value")
		}
		granted, ok := c.Args[0].(bool)
		if !ok {
			return fmt.Errorf("setConsent: expected bool, got %T", c.Args[0])
		}
		t.SetConsent(granted)
	case "optOut":
		t.OptOut()
	case "optIn":
		t.OptIn()
	case "reset":
		t.Reset()
	default:
		return fmt.Errorf("%w %q", ErrUnknownMethod, c.Method)
	}
	return nil
}

func stringArg(args []any, i int) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i, args[i])
	}
	return s, nil
}

func mapArg(args []any, i int) map[string]any {
	if len(args) <= i {
		return nil
	}
	m, _ := args[i].(map[string]any)
	return m
}

// configArg accepts a Config or a JSON-style option map merged over the
// defaults.
func configArg(v any) (Config, error) {
	switch opts := v.(type) {
	case Config:
		return opts, nil
	case map[string]any:
		raw, err := json.Marshal(opts)
		if err != nil {
			return Config{}, fmt.Errorf("failed to encode options: %w", err)
		}
		cfg := DefaultConfig()
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode options: %w", err)
		}
		return cfg, nil
	case nil:
		return DefaultConfig(), nil
	default:
		return Config{}, fmt.Errorf("unsupported options type %T", v)
	}
}
