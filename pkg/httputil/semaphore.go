// Package httputil carries concurrency plumbing for the HTTP surface.
package httputil

import (
	"context"
	"sync/atomic"
)

// Semaphore caps the number of scans the API layer admits at once. A full
// pipeline run decodes frames and runs every detector, so unbounded
// admission would let a burst of uploads exhaust memory before any
// per-scan deadline fires.
type Semaphore struct {
	slots    chan struct{}
	rejected atomic.Int64
}

// NewSemaphore creates a semaphore admitting up to capacity holders.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 32
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// TryAcquire admits without blocking; callers shed load (HTTP 503) when
// it returns false.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		s.rejected.Add(1)
		return false
	}
}

// Acquire blocks until a slot frees or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire or a successful TryAcquire.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
	}
}

// InUse returns how many slots are currently held.
func (s *Semaphore) InUse() int { return len(s.slots) }

// Rejected returns how many admissions were shed.
func (s *Semaphore) Rejected() int64 { return s.rejected.Load() }
