package worker

import (
	"context"
	"log"
	"sync"
)

// Latest runs one job at a time. Submitting a new job cancels the one in
// flight, so only the most recent submission is allowed to finish.
type Latest struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	closed bool
	wg     sync.WaitGroup
}

func NewLatest() *Latest {
	return &Latest{}
}

// Submit starts run on its own goroutine under a context derived from parent.
// It reports false only after Close.
func (l *Latest) Submit(parent context.Context, run Job) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	if l.cancel != nil {
		log.Printf("Worker: superseding in-flight job %d", l.gen)
		l.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer l.finish(gen, cancel)
		run(ctx)
	}()
	return true
}

func (l *Latest) finish(gen uint64, cancel context.CancelFunc) {
	cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen {
		l.cancel = nil
	}
}

// Running reports whether the most recent job is still executing.
func (l *Latest) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Close cancels the in-flight job and waits for every started job to return.
func (l *Latest) Close() {
	l.mu.Lock()
	l.closed = true
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()
	l.wg.Wait()
}
