package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Loop runs submitted tasks one at a time on a single goroutine.
//
// State owned by the loop must only be read or written from tasks. Submit is
// non-blocking and the queue is unbounded, so device goroutines never stall
// waiting for the loop. Tasks submitted from one goroutine run in order.
//
// Thread Safety: Submit, Call and AfterFunc are safe for concurrent use.
// Call must not be used from inside a task.
type Loop struct {
	logger Logger

	mu      sync.Mutex
	queue   []func()
	running bool
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// NewLoop creates a loop. Call Run to start processing.
func NewLoop(logger Logger) *Loop {
	return &Loop{
		logger: orNop(logger),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled. Tasks still queued at that
// point are discarded and later submissions are rejected.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.stopped {
		l.mu.Unlock()
		return errors.New("host: loop already started")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.stopped = true
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
		if dropped > 0 {
			l.logger.Warn("event loop stopped with pending tasks", "dropped", dropped)
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		tasks := l.take()
		for _, task := range tasks {
			l.runTask(task)
		}
		if len(tasks) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.queue
	l.queue = nil
	return tasks
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	task()
}

// Submit queues fn to run on the loop and returns immediately.
// It reports false when the loop has stopped and fn was dropped.
func (l *Loop) Submit(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	var taskErr error

	ok := l.Submit(func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				taskErr = fmt.Errorf("host: loop task panicked: %v", r)
			}
		}()
		fn()
	})
	if !ok {
		return ErrLoopStopped
	}

	select {
	case <-finished:
		return taskErr
	case <-l.done:
		select {
		case <-finished:
			return taskErr
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc submits fn to the loop once d has elapsed.
// Stopping the returned timer before it fires cancels the submission.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { l.Submit(fn) })
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
