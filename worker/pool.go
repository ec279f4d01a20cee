package worker

import (
	"context"
	"log"
	"runtime"
	"sync"
)

// Job is one unit of work. Once a worker has taken it, it runs with the
// context it was submitted with even if that context ends in the meantime,
// so callers waiting on the job always hear back.
type Job func(ctx context.Context)

// Pool is a fixed-size worker pool. Submit blocks while every worker is busy.
type Pool struct {
	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup

	quitOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

type job struct {
	ctx context.Context
	run Job
}

// New creates a worker pool. Size defaults to NumCPU when size<=0.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job), quit: make(chan struct{})}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				if err := j.ctx.Err(); err != nil {
					log.Printf("Worker: job context already done: %v", err)
				}
				j.run(j.ctx)
			}
		}()
	}
}

// Submit waits for a free worker and hands it the job. It returns false,
// without running the job, if ctx ends or the pool closes first.
func (p *Pool) Submit(ctx context.Context, run Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || ctx.Err() != nil {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, run: run}:
		return true
	case <-ctx.Done():
		return false
	case <-p.quit:
		return false
	}
}

// Close releases waiting submitters and stops the pool after current work.
func (p *Pool) Close() {
	p.quitOnce.Do(func() { close(p.quit) })
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
