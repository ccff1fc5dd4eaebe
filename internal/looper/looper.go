// Package looper runs tasks one at a time on a dedicated goroutine
package looper

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrStopped is returned when posting to a stopped looper
var ErrStopped = errors.New("looper stopped")

// Looper executes posted tasks in order on a single goroutine
type Looper struct {
	tasks  chan func()
	logger *log.Logger

	mu       sync.RWMutex
	stopped  bool
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// New creates a looper with a queue of the given size
func New(queueSize int, logger *log.Logger) *Looper {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Looper{
		tasks:  make(chan func(), queueSize),
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled or Stop is called. Tasks
// still queued at that point are dropped without running.
func (l *Looper) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.quit:
			return
		case task, ok := <-l.tasks:
			if !ok {
				return
			}
			// select picks randomly when both are ready
			select {
			case <-l.quit:
				return
			default:
			}
			l.run(task)
		}
	}
}

func (l *Looper) run(task func()) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Printf("[looper] Task panicked: %v", r)
		}
	}()
	task()
}

// Post queues a task. It blocks while the queue is full.
func (l *Looper) Post(task func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.stopped {
		return ErrStopped
	}
	select {
	case l.tasks <- task:
		return nil
	case <-l.quit:
		return ErrStopped
	}
}

// Call runs fn on the looper and waits for it to finish
func (l *Looper) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting tasks and ends Run
func (l *Looper) Stop() {
	// Release posters blocked on a full queue before taking the lock
	l.quitOnce.Do(func() { close(l.quit) })

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return
	}
	l.stopped = true
	close(l.tasks)
}

// Done is closed when Run returns
func (l *Looper) Done() <-chan struct{} {
	return l.done
}
