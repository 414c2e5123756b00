// Package queue buffers custom events between batch flushes.
package queue

import (
	"sync"
	"time"
)

// Queue is an insertion-ordered buffer with a flush threshold. It is not
// safe for concurrent use; the tracker serializes access.
type Queue[T any] struct {
	items     []T
	threshold int
}

func New[T any](threshold int) *Queue[T] {
	if threshold < 1 {
		threshold = 1
	}
	return &Queue[T]{threshold: threshold}
}

// Enqueue appends item and reports whether the queue reached its threshold.
func (q *Queue[T]) Enqueue(item T) bool {
	q.items = append(q.items, item)
	return len(q.items) >= q.threshold
}

// Drain removes and returns up to limit items from the front. limit < 1 drains
// everything.
func (q *Queue[T]) Drain(limit int) []T {
	n := len(q.items)
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, q.items[:n])
	rest := copy(q.items, q.items[n:])
	clear(q.items[rest:])
	q.items = q.items[:rest]
	return out
}

func (q *Queue[T]) Len() int { return len(q.items) }

func (q *Queue[T]) Clear() {
	clear(q.items)
	q.items = q.items[:0]
}

// Ticker calls fn every interval until stopped.
type Ticker struct {
	stop chan struct{}
	once sync.Once
	done chan struct{}
}

func Every(interval time.Duration, fn func()) *Ticker {
	t := &Ticker{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// Stop ends the ticker without waiting for a running fn to return.
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Done is closed once the ticker goroutine has exited.
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}
