package analytics

import (
	"sync"

	"github.com/nexora/nexora-analytics/browser"
)

// The shared tracker mirrors the single global instance of the loader
// snippet: calls made before Install are buffered and replayed.
var (
	sharedMu sync.Mutex
	shared   *Tracker
	pending  CallQueue
)

// Install creates the shared tracker for host and replays buffered calls.
// A second Install returns the existing tracker.
func Install(host browser.Host, opts ...Option) *Tracker {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		return shared
	}
	shared = New(host, opts...)
	pending.Replay(shared)
	return shared
}

// Shared returns the installed tracker, or nil.
func Shared() *Tracker {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return shared
}

// Enqueue forwards a call to the shared tracker, buffering it until
// Install when none exists yet.
func Enqueue(method string, args ...any) error {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		pending.Push(method, args...)
		return nil
	}
	return shared.Apply(Call{Method: method, Args: args})
}

// Uninstall closes and forgets the shared tracker.
func Uninstall() {
	sharedMu.Lock()
	t := shared
	shared = nil
	sharedMu.Unlock()
	if t != nil {
		t.Close()
	}
}
