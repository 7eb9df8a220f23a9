// Package interop exposes the module as a flat, handle-based,
// callback-driven surface shaped for foreign-function bindings. Objects
// cross the boundary as opaque generation-checked handles, events cross
// as registered (callback, userData) pairs, and every operation returns
// a Result code instead of an error.
//
// The process-wide runtime (engine, signaling queue, capture backend)
// boots when the first peer connection is created and tears down when
// the last one closes.
package interop

import (
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/thesyncim/rtcbridge/internal/capture"
	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/internal/handle"
	"github.com/thesyncim/rtcbridge/internal/session"
	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// Handle is an opaque reference to a boundary-owned object. The zero
// value never resolves.
type Handle = handle.Handle

// Null is the null handle.
const Null = handle.Nil

// RuntimeConfig stages configuration for the next runtime boot. It has
// no effect on a runtime that is already up.
type RuntimeConfig struct {
	LoggerFactory logging.LoggerFactory

	// InvokeTimeout bounds synchronous signaling-queue dispatch. Zero
	// picks the default.
	InvokeTimeout time.Duration
}

var boundary struct {
	mu  sync.Mutex
	rt  *session.Runtime
	log logging.LeveledLogger
	cfg RuntimeConfig

	// Test seams. Consumed at the next boot when non-nil.
	engine  engine.Engine
	backend capture.Backend
}

var registry = handle.NewRegistry()

// SetRuntimeConfig replaces the staged runtime configuration.
func SetRuntimeConfig(cfg RuntimeConfig) {
	boundary.mu.Lock()
	boundary.cfg = cfg
	boundary.mu.Unlock()
}

// runtimeLocked returns the live runtime, booting one when absent.
// Caller holds boundary.mu.
func runtimeLocked() (*session.Runtime, error) {
	if boundary.rt != nil {
		return boundary.rt, nil
	}
	rt, err := session.NewRuntime(session.RuntimeOptions{
		LoggerFactory: boundary.cfg.LoggerFactory,
		Engine:        boundary.engine,
		Capture:       boundary.backend,
		InvokeTimeout: boundary.cfg.InvokeTimeout,
	})
	if err != nil {
		return nil, err
	}
	boundary.rt = rt
	boundary.log = rt.LoggerFactory().NewLogger("interop")
	return rt, nil
}

func acquireRuntime() (*session.Runtime, error) {
	boundary.mu.Lock()
	defer boundary.mu.Unlock()
	return runtimeLocked()
}

// releaseRuntimeIfIdle tears the runtime down once no session is left.
func releaseRuntimeIfIdle() {
	boundary.mu.Lock()
	rt := boundary.rt
	if rt == nil || rt.SessionCount() > 0 {
		boundary.mu.Unlock()
		return
	}
	boundary.rt = nil
	boundary.mu.Unlock()
	_ = rt.Close()
}

func boundaryLog() logging.LeveledLogger {
	boundary.mu.Lock()
	defer boundary.mu.Unlock()
	if boundary.log == nil {
		lf := boundary.cfg.LoggerFactory
		if lf == nil {
			lf = logging.NewDefaultLoggerFactory()
		}
		boundary.log = lf.NewLogger("interop")
	}
	return boundary.log
}

// SetFrameHeightRoundMode adjusts the height of delivered remote video
// frames to a multiple of 16. Applies to every session in the process.
func SetFrameHeightRoundMode(mode frame.HeightRoundMode) {
	session.SetFrameHeightRoundMode(mode)
}
