package engine

import (
	"errors"
	"testing"
)

func newTestPionSession(t *testing.T) Session {
	t.Helper()
	eng, err := NewPionEngine(PionOptions{})
	if err != nil {
		t.Fatalf("NewPionEngine: %v", err)
	}
	sess, err := eng.NewSession(Config{}, func(Event) {})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestPionSetBitrateMergesPartialBounds(t *testing.T) {
	sess := newTestPionSession(t)

	if err := sess.SetBitrate(BitrateSettings{MinBps: 100_000, StartBps: 300_000, MaxBps: 2_000_000}); err != nil {
		t.Fatalf("SetBitrate: %v", err)
	}
	// Negative bounds keep the values from the first call.
	if err := sess.SetBitrate(BitrateSettings{MinBps: -1, StartBps: 500_000, MaxBps: -1}); err != nil {
		t.Fatalf("SetBitrate partial: %v", err)
	}

	ps := sess.(*pionSession)
	ps.mu.Lock()
	got := ps.bitrate
	ps.mu.Unlock()
	want := BitrateSettings{MinBps: 100_000, StartBps: 500_000, MaxBps: 2_000_000}
	if got != want {
		t.Errorf("merged bounds = %+v, want %+v", got, want)
	}
}

func TestPionSetBitrateAfterCloseFails(t *testing.T) {
	sess := newTestPionSession(t)
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.SetBitrate(BitrateSettings{StartBps: 300_000}); !errors.Is(err, ErrPeerClosed) {
		t.Errorf("SetBitrate after close = %v, want ErrPeerClosed", err)
	}
}
