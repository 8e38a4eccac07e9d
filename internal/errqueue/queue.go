// Package errqueue collects connection-level errors for a single consumer.
package errqueue

import (
	"errors"
	"strings"
	"sync"
)

// ErrDrained is returned when the queue is drained a second time.
var ErrDrained = errors.New("error queue already drained")

// Queue is an ordered multi-producer collector drained exactly once.
type Queue struct {
	mu      sync.Mutex
	errs    []error
	ready   chan struct{}
	signal  bool
	drained bool
	dropped int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{ready: make(chan struct{})}
}

// Put appends err. It reports false when the queue has already been drained
// and the error was dropped.
func (q *Queue) Put(err error) bool {
	if err == nil {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.drained {
		q.dropped++
		return false
	}
	q.errs = append(q.errs, err)
	if !q.signal {
		q.signal = true
		close(q.ready)
	}
	return true
}

// Ready is closed once the first error has been put.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Drain returns every error put so far, in order, and closes the queue to
// further errors. Only the first call succeeds.
func (q *Queue) Drain() ([]error, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.drained {
		return nil, ErrDrained
	}
	q.drained = true
	errs := q.errs
	q.errs = nil
	return errs, nil
}

// Len returns the number of queued errors.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.errs)
}

// Dropped returns how many errors arrived after the drain.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// MultiError reports several connection errors at once.
type MultiError struct {
	Errs []error
}

func (m *MultiError) Error() string {
	parts := make([]string, 0, len(m.Errs))
	for _, err := range m.Errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, ", ")
}

func (m *MultiError) Unwrap() []error {
	return m.Errs
}

// Combine returns nil for no errors, the error itself for one, and a
// MultiError for several.
func Combine(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &MultiError{Errs: append([]error(nil), errs...)}
	}
}
