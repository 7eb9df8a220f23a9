// Package dispatch provides the single serialized execution context that
// engine mutations and capture-device access are funneled through. Tasks run
// one at a time, in submission order, on one dedicated goroutine.
package dispatch

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
)

var (
	// ErrClosed is returned when the queue has shut down.
	ErrClosed = errors.New("dispatch: queue closed")

	// ErrInvokeTimeout is returned when the queue did not finish the task
	// within the invoke window. The task is abandoned and will be skipped
	// if it is still waiting in the queue.
	ErrInvokeTimeout = errors.New("dispatch: invoke timed out")
)

// DefaultInvokeTimeout bounds Invoke when the queue is built without an
// explicit timeout, so a wedged context fails the caller instead of hanging
// it forever.
const DefaultInvokeTimeout = 10 * time.Second

type task struct {
	fn        func()
	done      chan struct{}
	abandoned atomic.Bool
}

// Queue is a single-worker task queue with a synchronous invoke-and-wait
// primitive.
type Queue struct {
	name    string
	tasks   chan *task
	quit    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	timeout time.Duration
	log     logging.LeveledLogger
}

// New starts the worker goroutine. invokeTimeout <= 0 selects
// DefaultInvokeTimeout.
func New(name string, lf logging.LoggerFactory, invokeTimeout time.Duration) *Queue {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	if invokeTimeout <= 0 {
		invokeTimeout = DefaultInvokeTimeout
	}
	q := &Queue{
		name:    name,
		tasks:   make(chan *task, 64),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		timeout: invokeTimeout,
		log:     lf.NewLogger("dispatch"),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.stopped)
	q.log.Debugf("%s: queue up", q.name)
	for {
		select {
		case t := <-q.tasks:
			q.exec(t)
		case <-q.quit:
			// Run whatever was accepted before Close so callers blocked
			// on a submitted task still complete.
			for {
				select {
				case t := <-q.tasks:
					q.exec(t)
				default:
					q.log.Debugf("%s: queue down", q.name)
					return
				}
			}
		}
	}
}

func (q *Queue) exec(t *task) {
	defer close(t.done)
	if t.abandoned.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorf("%s: task panic: %v", q.name, r)
		}
	}()
	t.fn()
}

// Invoke runs fn on the queue goroutine and blocks until it has completed.
// Tasks submitted earlier run first. Returns ErrInvokeTimeout when fn did
// not complete within the queue's invoke window and ErrClosed when the
// queue is shut down.
func (q *Queue) Invoke(fn func()) error {
	if q.closed.Load() {
		return ErrClosed
	}
	t := &task{fn: fn, done: make(chan struct{})}
	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case q.tasks <- t:
	case <-q.quit:
		return ErrClosed
	case <-timer.C:
		q.log.Warnf("%s: invoke timed out after %v while queueing", q.name, q.timeout)
		return ErrInvokeTimeout
	}

	select {
	case <-t.done:
		return nil
	case <-q.stopped:
		// Worker exited; the shutdown drain may still have run the task.
		select {
		case <-t.done:
			return nil
		default:
		}
		return ErrClosed
	case <-timer.C:
		t.abandoned.Store(true)
		q.log.Warnf("%s: invoke timed out after %v", q.name, q.timeout)
		return ErrInvokeTimeout
	}
}

// Post submits fn without waiting for it to run.
func (q *Queue) Post(fn func()) error {
	if q.closed.Load() {
		return ErrClosed
	}
	t := &task{fn: fn, done: make(chan struct{})}
	select {
	case q.tasks <- t:
		return nil
	case <-q.quit:
		return ErrClosed
	}
}

// Close stops the worker after the already accepted tasks have run.
// Safe to call more than once; every call waits for the worker to exit.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.quit)
	}
	<-q.stopped
}
