// Package lifecycle supervises long-running goroutines: the singleinstance
// accept pump, the permission watcher, the bindings file watcher.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Runner is one supervised unit of work. Run blocks until the context is
// cancelled or the unit fails.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// Func adapts a plain function to a Runner.
func Func(name string, fn func(ctx context.Context) error) Runner {
	return funcRunner{name: name, fn: fn}
}

type funcRunner struct {
	name string
	fn   func(ctx context.Context) error
}

func (r funcRunner) Name() string                  { return r.name }
func (r funcRunner) Run(ctx context.Context) error { return r.fn(ctx) }

var (
	maxRestarts    = 5
	backoffBase    = time.Second
	backoffCeiling = 30 * time.Second
)

// Supervisor restarts crashed runners with exponential backoff and gives up
// after maxRestarts consecutive crashes. Panics count as crashes.
type Supervisor struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	crashes map[string]int
}

func NewSupervisor() *Supervisor {
	return &Supervisor{crashes: map[string]int{}}
}

// Start launches the runner under supervision. A runner that returns nil or
// the context's error is considered finished, not crashed.
func (s *Supervisor) Start(ctx context.Context, r Runner) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			err := s.runOnce(ctx, r)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ctx.Err()) {
				log.Printf("Supervisor: %s finished", r.Name())
				return
			}

			s.mu.Lock()
			s.crashes[r.Name()]++
			n := s.crashes[r.Name()]
			s.mu.Unlock()

			if n > maxRestarts {
				log.Printf("Supervisor: %s crashed %d times, giving up: %v", r.Name(), n-1, err)
				return
			}
			delay := backoff(n)
			log.Printf("Supervisor: %s crashed (attempt %d): %v; restarting in %s", r.Name(), n, err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
}

// Wait blocks until every supervised runner has finished.
func (s *Supervisor) Wait() { s.wg.Wait() }

// CrashCount reports how many times the named runner has crashed.
func (s *Supervisor) CrashCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crashes[name]
}

func (s *Supervisor) runOnce(ctx context.Context, r Runner) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Run(ctx)
}

func backoff(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > backoffCeiling || d <= 0 {
		return backoffCeiling
	}
	return d
}
