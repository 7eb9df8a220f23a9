// Package testutil provides shared helpers for rtcbridge tests: bounded
// waits for asynchronously delivered events and deterministic frame
// builders.
package testutil

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// WaitTimeout bounds every helper that waits for a callback.
const WaitTimeout = 5 * time.Second

// WaitFor polls cond until it reports true or the timeout elapses.
func WaitFor(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(WaitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %s", what)
}

// WaitSignal blocks until ch is closed or receives, failing on timeout.
func WaitSignal(tb testing.TB, what string, ch <-chan struct{}) {
	tb.Helper()
	select {
	case <-ch:
	case <-time.After(WaitTimeout):
		tb.Fatalf("timed out waiting for %s", what)
	}
}

// Recorder collects events delivered from arbitrary goroutines.
type Recorder[T any] struct {
	mu     sync.Mutex
	events []T
}

// Record appends one event.
func (r *Recorder[T]) Record(ev T) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events snapshots the recorded events in delivery order.
func (r *Recorder[T]) Events() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.events...)
}

// Len reports the number of recorded events.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// WaitLen blocks until at least n events were recorded.
func (r *Recorder[T]) WaitLen(tb testing.TB, what string, n int) []T {
	tb.Helper()
	WaitFor(tb, what, func() bool { return r.Len() >= n })
	return r.Events()
}

// GradientI420AFrame builds a frame with a diagonal luma gradient and flat
// chroma, recognizable after conversion round trips.
func GradientI420AFrame(width, height int32) *frame.I420AVideoFrame {
	f := frame.NewI420AFrame(width, height, false)
	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			f.YData[y*f.YStride+x] = byte((x + y) % 256)
		}
	}
	for i := range f.UData {
		f.UData[i] = 128
	}
	for i := range f.VData {
		f.VData[i] = 128
	}
	return f
}

// SineAudioFrame builds a 440 Hz PCM16 frame.
func SineAudioFrame(sampleRate, channels, samples uint32) *frame.AudioFrame {
	f := frame.NewAudioFrame(sampleRate, channels, samples)
	const freq, amplitude = 440.0, 10000.0
	for i := uint32(0); i < samples; i++ {
		t := float64(i) / float64(sampleRate)
		v := int16(amplitude * math.Sin(2*math.Pi*freq*t))
		for c := uint32(0); c < channels; c++ {
			f.Data[i*channels+c] = v
		}
	}
	return f
}
