// Package parallel provides the bounded worker pool that runs background
// decode jobs for the tile store.
//
// Submission never blocks the caller: jobs queue without bound and a fixed
// number of workers drain the queue. This matters because jobs are scheduled
// from the interactive thread, which must return immediately.
package parallel

import (
	"runtime"
	"sync"
)

// Pool runs submitted jobs on a fixed set of worker goroutines.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	workers int
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given number of workers and starts them.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{workers: workers}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if job != nil {
			job()
		}
	}
}

// Submit queues a job for execution. It returns immediately.
// Jobs submitted after Close are dropped.
func (p *Pool) Submit(job func()) {
	if job == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	p.cond.Signal()
}

// Pending returns the number of jobs waiting to run.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Close stops accepting new jobs, waits for queued jobs to finish, and
// stops all workers. Close is safe to call multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}
