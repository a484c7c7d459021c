package worker

import (
	"context"
	"log"
	"runtime"
	"sync"

	"snipclip/src/capture"
)

// CaptureFunc performs one capture. It is the engine's Capture method in
// production and a fake in tests.
type CaptureFunc func(ctx context.Context, target capture.Target) (*capture.Result, error)

// ResultCallback is invoked on capture completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the loop safely.
type ResultCallback func(res *capture.Result, err error)

// Pool is a fixed-size capture worker pool with a 1-slot input queue (strict
// back-pressure): a hotkey mashed while a capture runs is dropped, not queued.
type Pool struct {
	capture CaptureFunc
	jobs    chan job
	wg      sync.WaitGroup
}

type job struct {
	ctx    context.Context
	target capture.Target
	cb     ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int, fn CaptureFunc) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{capture: fn, jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Printf("Worker: starting capture of %s", j.target)
				res, err := p.captureWithContext(j.ctx, j.target)
				if err != nil {
					log.Printf("Worker: capture of %s failed: %v", j.target, err)
				} else {
					log.Printf("Worker: capture of %s completed (%dx%d)", j.target, res.Width, res.Height)
				}
				j.cb(res, err)
			}
		}()
	}
}

// Submit enqueues a capture if the single-slot queue is free. Returns false
// if dropped.
func (p *Pool) Submit(ctx context.Context, target capture.Target, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, target: target, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// captureWithContext bails out when the deadline fires even if the underlying
// grab is stuck in an OS call; the grab finishes in the background and its
// result is discarded.
func (p *Pool) captureWithContext(ctx context.Context, target capture.Target) (*capture.Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		return p.capture(ctx, target)
	}
	type outcome struct {
		res *capture.Result
		err error
	}
	resCh := make(chan outcome, 1)
	go func() {
		res, err := p.capture(ctx, target)
		resCh <- outcome{res, err}
	}()
	select {
	case r := <-resCh:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
