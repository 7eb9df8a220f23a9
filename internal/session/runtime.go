// Package session is the Go-facing façade between the flat interop surface
// and the peer-connection engine. A Runtime owns the shared machinery
// (engine, signaling queue, capture backend); Sessions own tracks, data
// channels, and callback slots.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/thesyncim/rtcbridge/internal/capture"
	"github.com/thesyncim/rtcbridge/internal/dispatch"
	"github.com/thesyncim/rtcbridge/internal/engine"
)

// ErrRuntimeClosed is returned by operations on a torn-down runtime.
var ErrRuntimeClosed = errors.New("session: runtime closed")

// RuntimeOptions configures a Runtime. Zero values pick production
// defaults: pion engine, native capture backend, default logger factory.
type RuntimeOptions struct {
	LoggerFactory logging.LoggerFactory

	// Engine overrides the transport implementation. Nil builds the pion
	// engine with the runtime's logger factory.
	Engine engine.Engine

	// Capture overrides the device backend. Nil attempts the native shim;
	// when the shim is unavailable the runtime still works, device-backed
	// track creation just finds no devices.
	Capture capture.Backend

	// InvokeTimeout bounds synchronous signaling-queue dispatch.
	InvokeTimeout time.Duration
}

// Runtime owns the process-wide collaborators every session shares: the
// engine, the signaling queue that serializes capture acquisition, and the
// capture backend. It is constructed explicitly and passed around; nothing
// here is a package-level singleton.
type Runtime struct {
	lf    logging.LoggerFactory
	log   logging.LeveledLogger
	eng   engine.Engine
	queue *dispatch.Queue
	cap   capture.Backend

	mu       sync.Mutex
	sessions int
	closed   bool
}

func NewRuntime(opts RuntimeOptions) (*Runtime, error) {
	lf := opts.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	log := lf.NewLogger("runtime")

	eng := opts.Engine
	if eng == nil {
		var err error
		eng, err = engine.NewPionEngine(engine.PionOptions{LoggerFactory: lf})
		if err != nil {
			return nil, fmt.Errorf("session: build engine: %w", err)
		}
	}

	backend := opts.Capture
	if backend == nil {
		native, err := capture.NewNativeBackend(lf)
		if err != nil {
			log.Warnf("capture shim unavailable, device capture disabled: %v", err)
		} else {
			backend = native
		}
	}

	timeout := opts.InvokeTimeout
	if timeout <= 0 {
		timeout = dispatch.DefaultInvokeTimeout
	}

	r := &Runtime{
		lf:    lf,
		log:   log,
		eng:   eng,
		queue: dispatch.New("signaling", lf, timeout),
		cap:   backend,
	}
	log.Debugf("runtime up")
	return r, nil
}

func (r *Runtime) LoggerFactory() logging.LoggerFactory { return r.lf }

// Queue exposes the signaling queue for operations with thread affinity.
func (r *Runtime) Queue() *dispatch.Queue { return r.queue }

// Backend exposes the capture backend. Nil when device capture is
// unavailable.
func (r *Runtime) Backend() capture.Backend { return r.cap }

// SessionCount reports the number of live sessions.
func (r *Runtime) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions
}

func (r *Runtime) sessionOpened() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	r.sessions++
	return nil
}

func (r *Runtime) sessionClosed() {
	r.mu.Lock()
	r.sessions--
	r.mu.Unlock()
}

// Close tears the runtime down: the queue drains, the engine and capture
// backend close. Safe to call twice.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	live := r.sessions
	r.mu.Unlock()

	if live > 0 {
		r.log.Warnf("runtime closing with %d live sessions", live)
	}
	r.queue.Close()
	var err error
	if r.cap != nil {
		err = r.cap.Close()
	}
	if cerr := r.eng.Close(); cerr != nil && err == nil {
		err = cerr
	}
	r.log.Debugf("runtime down")
	return err
}
