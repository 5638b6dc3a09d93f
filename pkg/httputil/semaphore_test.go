package httputil

import (
	"context"
	"testing"
	"time"
)

func TestTryAcquireShedsAtCapacity(t *testing.T) {
	s := NewSemaphore(2)
	if !s.TryAcquire() || !s.TryAcquire() {
		t.Fatal("acquisitions within capacity must succeed")
	}
	if s.TryAcquire() {
		t.Fatal("acquisition beyond capacity must shed")
	}
	if s.Rejected() != 1 {
		t.Fatalf("rejected count = %d, want 1", s.Rejected())
	}

	s.Release()
	if !s.TryAcquire() {
		t.Fatal("released slot must be reusable")
	}
	if s.InUse() != 2 {
		t.Fatalf("in-use = %d, want 2", s.InUse())
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	s := NewSemaphore(1)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Acquire(ctx); err == nil {
		t.Fatal("acquire on a full semaphore must fail when ctx expires")
	}
}

func TestDefaultCapacity(t *testing.T) {
	s := NewSemaphore(0)
	for i := 0; i < 32; i++ {
		if !s.TryAcquire() {
			t.Fatalf("default capacity shed at %d", i)
		}
	}
	if s.TryAcquire() {
		t.Fatal("default capacity should be 32")
	}
}
