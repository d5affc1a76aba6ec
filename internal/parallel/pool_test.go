package parallel

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllJobs(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var count atomic.Int64
	var wg sync.WaitGroup

	const n = 200
	wg.Add(n)
	for range n {
		p.Submit(func() {
			count.Add(1)
			wg.Done()
		})
	}
	wg.Wait()

	if got := count.Load(); got != n {
		t.Errorf("ran %d jobs, want %d", got, n)
	}
}

func TestPoolSubmitDoesNotBlock(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	p.Submit(func() { <-release })

	// With a single busy worker, further submissions must still return
	// immediately.
	done := make(chan struct{})
	go func() {
		for range 100 {
			p.Submit(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked with a busy worker")
	}
	close(release)
}

func TestPoolCloseDrainsQueue(t *testing.T) {
	p := NewPool(2)

	var count atomic.Int64
	for range 50 {
		p.Submit(func() { count.Add(1) })
	}
	p.Close()

	if got := count.Load(); got != 50 {
		t.Errorf("ran %d jobs before Close returned, want 50", got)
	}

	// After Close, submissions are dropped rather than panicking.
	p.Submit(func() { count.Add(1) })
	if got := count.Load(); got != 50 {
		t.Errorf("job ran after Close, count = %d", got)
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(0)
	if p.Workers() <= 0 {
		t.Fatalf("Workers() = %d, want > 0", p.Workers())
	}
	p.Close()
	p.Close()
}

func TestPoolNilJob(t *testing.T) {
	p := NewPool(1)
	defer p.Close()
	p.Submit(nil)
	if got := p.Pending(); got != 0 {
		t.Errorf("Pending() = %d after nil submit, want 0", got)
	}
}
