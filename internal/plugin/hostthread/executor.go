// Package hostthread serializes plugin lifecycle work and plugin callbacks
// onto a single goroutine.
package hostthread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when attempting to use a closed executor.
var ErrClosed = errors.New("host thread is closed")

// Func is work to run on the host thread. The context it receives is marked
// so nested Execute calls run inline.
type Func func(ctx context.Context) error

// PanicError wraps a panic recovered on the host thread.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic on host thread: %v", e.Value)
}

type call struct {
	ctx    context.Context
	fn     Func
	result chan error
}

type onThreadKey struct{}

// Executor runs queued work on one goroutine, started by New and stopped by
// Close.
type Executor struct {
	queue  chan *call
	closed atomic.Bool
	done   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
}

// New starts an executor. The queue size determines how many operations can
// be buffered.
func New(queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = 100
	}
	e := &Executor{
		queue:  make(chan *call, queueSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go e.run()
	return e
}

// OnThread reports whether ctx was issued by the host thread.
func OnThread(ctx context.Context) bool {
	on, _ := ctx.Value(onThreadKey{}).(bool)
	return on
}

func (e *Executor) run() {
	defer close(e.exited)
	for {
		select {
		case <-e.done:
			e.drainQueue(ErrClosed)
			return
		case c := <-e.queue:
			c.result <- runGuarded(markThread(c.ctx), c.fn)
			close(c.result)
		}
	}
}

func markThread(ctx context.Context) context.Context {
	return context.WithValue(ctx, onThreadKey{}, true)
}

// runGuarded calls fn, converting a panic into a PanicError.
func runGuarded(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx)
}

// drainQueue fails every queued call with err.
func (e *Executor) drainQueue(err error) {
	for {
		select {
		case c := <-e.queue:
			c.result <- err
			close(c.result)
		default:
			return
		}
	}
}

// Execute runs fn on the host thread and waits for it. Called from the host
// thread itself, fn runs inline.
func (e *Executor) Execute(ctx context.Context, fn Func) error {
	if OnThread(ctx) {
		return runGuarded(ctx, fn)
	}
	if e.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c := &call{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrClosed
	case e.queue <- c:
	}

	// A queued call always runs, so wait for it regardless of ctx.
	select {
	case err := <-c.result:
		return err
	case <-e.exited:
		select {
		case err := <-c.result:
			return err
		default:
			return ErrClosed
		}
	}
}

// Close stops the executor after the running call finishes. Queued calls
// fail with ErrClosed. Close must not be called from the host thread.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
	<-e.exited
}

// IsClosed returns true if the executor has been closed.
func (e *Executor) IsClosed() bool {
	return e.closed.Load()
}
