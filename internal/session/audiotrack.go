package session

import (
	"fmt"
	"sync/atomic"

	"github.com/thesyncim/rtcbridge/internal/capture"
	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// LocalAudioTrackName is the fixed identifier of the single local audio
// track a session owns.
const LocalAudioTrackName = "local_audio"

// AudioTrack binds the default audio capture device to an engine audio
// sender. Sessions own at most one. Enabled toggles output without
// touching the device.
type AudioTrack struct {
	session *Session
	sender  engine.AudioSender
	source  capture.AudioSource

	enabled atomic.Bool
	closed  atomic.Bool
}

func (t *AudioTrack) SetEnabled(on bool) { t.enabled.Store(on) }

func (t *AudioTrack) Enabled() bool { return t.enabled.Load() }

// deliver pumps captured PCM to the engine and mirrors it to the
// local-audio-frame slot when registered.
func (t *AudioTrack) deliver(f *frame.AudioFrame) {
	if t.closed.Load() || !t.enabled.Load() {
		return
	}
	if err := t.sender.WriteFrame(f); err != nil {
		t.session.log.Debugf("audio track: dropped frame: %v", err)
	}

	s := t.session
	s.cb.mu.RLock()
	fn := s.cb.localAudioFrame
	s.cb.mu.RUnlock()
	if fn != nil {
		s.fire("local audio frame", func() { fn(f) })
	}
}

func (t *AudioTrack) stop() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	if t.source != nil {
		_ = t.session.rt.queue.Invoke(func() { _ = t.source.Close() })
	}
	if err := t.sender.Close(); err != nil {
		t.session.log.Debugf("audio track: sender close: %v", err)
	}
}

// AddAudioTrack opens the default audio device and attaches it as the
// session's single local audio track.
func (s *Session) AddAudioTrack() (*AudioTrack, error) {
	if s.closed.Load() {
		return nil, engine.ErrPeerClosed
	}
	s.mu.Lock()
	exists := s.audioTrack != nil
	s.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("%w: audio track already added", engine.ErrInvalidOperation)
	}
	backend := s.rt.cap
	if backend == nil {
		return nil, fmt.Errorf("%w: no capture backend", engine.ErrNotFound)
	}

	sender, err := s.eng.AddAudioSender(LocalAudioTrackName)
	if err != nil {
		return nil, err
	}
	t := &AudioTrack{session: s, sender: sender}
	t.enabled.Store(true)

	var openErr error
	err = s.rt.queue.Invoke(func() {
		t.source, openErr = backend.OpenAudio(capture.AudioConfig{}, t.deliver)
	})
	if err == nil {
		err = openErr
	}
	if err != nil {
		if cerr := sender.Close(); cerr != nil {
			s.log.Debugf("audio track: sender close after failed open: %v", cerr)
		}
		return nil, err
	}

	s.mu.Lock()
	if s.audioTrack != nil {
		s.mu.Unlock()
		t.stop()
		return nil, fmt.Errorf("%w: audio track already added", engine.ErrInvalidOperation)
	}
	s.audioTrack = t
	s.mu.Unlock()
	s.log.Debugf("audio track added")
	return t, nil
}

// RemoveAudioTrack detaches and stops the local audio track.
func (s *Session) RemoveAudioTrack() error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}
	s.mu.Lock()
	t := s.audioTrack
	s.audioTrack = nil
	s.mu.Unlock()
	if t == nil {
		return fmt.Errorf("%w: no audio track", engine.ErrNotFound)
	}
	t.stop()
	return nil
}

// SetAudioEnabled toggles the local audio track's output.
func (s *Session) SetAudioEnabled(on bool) error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}
	s.mu.Lock()
	t := s.audioTrack
	s.mu.Unlock()
	if t == nil {
		return fmt.Errorf("%w: no audio track", engine.ErrInvalidOperation)
	}
	t.SetEnabled(on)
	return nil
}

// AudioEnabled reports the local audio track's state; false when none.
func (s *Session) AudioEnabled() bool {
	s.mu.Lock()
	t := s.audioTrack
	s.mu.Unlock()
	return t != nil && t.Enabled()
}
