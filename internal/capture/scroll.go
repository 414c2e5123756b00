package capture

import (
	"math"
	"sync"
	"time"
)

// ScrollPercent is round((scrollTop+viewport)/document*100) clamped to [0,100].
// An empty document counts as fully seen.
func ScrollPercent(scrollTop, viewportHeight, documentHeight int) int {
	if documentHeight <= 0 {
		return 100
	}
	p := int(math.Round(float64(scrollTop+viewportHeight) / float64(documentHeight) * 100))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// ScrollDepth keeps the deepest scroll percent seen during one page view.
type ScrollDepth struct {
	max int
}

// Record folds p into the running maximum and returns the maximum.
func (s *ScrollDepth) Record(p int) int {
	if p > s.max {
		s.max = min(p, 100)
	}
	return s.max
}

func (s *ScrollDepth) Max() int { return s.max }

func (s *ScrollDepth) Reset() { s.max = 0 }

// Debouncer runs fn once, wait after the last Trigger.
type Debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
}

func NewDebouncer(wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fn)
}

// Stop cancels a pending call and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
