package session

import (
	"fmt"
	"sync/atomic"

	"github.com/thesyncim/rtcbridge/internal/capture"
	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// DefaultExternalTrackName substitutes for an empty name when a track is
// bound to an external source.
const DefaultExternalTrackName = "external_track"

// VideoTrack binds one engine video sender to a frame producer: either a
// capture-device source or an external source. Disabled tracks stay
// attached but drop frames.
type VideoTrack struct {
	session *Session
	name    string
	sender  engine.VideoSender

	// Exactly one of the two is set.
	source   capture.VideoSource
	external *ExternalVideoSource

	enabled atomic.Bool
	closed  atomic.Bool
}

func (t *VideoTrack) Name() string { return t.name }

func (t *VideoTrack) SetEnabled(on bool) { t.enabled.Store(on) }

func (t *VideoTrack) Enabled() bool { return t.enabled.Load() }

// deliverSample feeds encoded capture output to the engine.
func (t *VideoTrack) deliverSample(sample frame.VideoSample) {
	if t.closed.Load() || !t.enabled.Load() {
		return
	}
	if err := t.sender.WriteSample(sample); err != nil {
		t.session.log.Debugf("track %s: dropped sample: %v", t.name, err)
	}
}

// deliverFrame feeds raw external-source frames to the engine.
func (t *VideoTrack) deliverFrame(f *frame.I420AVideoFrame) {
	if t.closed.Load() || !t.enabled.Load() {
		return
	}
	if err := t.sender.WriteFrame(f); err != nil {
		t.session.log.Debugf("track %s: dropped frame: %v", t.name, err)
	}
}

// stop detaches the track from its producer and the engine. Idempotent;
// called on removal, on session close, and when the last handle reference
// drops.
func (t *VideoTrack) stop() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	if t.external != nil {
		t.external.detach(t)
	}
	if t.source != nil {
		// Device release has the same thread affinity as acquisition.
		_ = t.session.rt.queue.Invoke(func() { _ = t.source.Close() })
	}
	if err := t.sender.Close(); err != nil {
		t.session.log.Debugf("track %s: sender close: %v", t.name, err)
	}
}

// AddVideoTrackFromDevice resolves a capture device against cfg, opens it
// on the signaling queue, and binds it to a new engine sender under name.
func (s *Session) AddVideoTrackFromDevice(name string, cfg capture.VideoConfig) (*VideoTrack, error) {
	if s.closed.Load() {
		return nil, engine.ErrPeerClosed
	}
	backend := s.rt.cap
	if backend == nil {
		return nil, fmt.Errorf("%w: no capture backend", engine.ErrNotFound)
	}

	sender, err := s.eng.AddVideoSender(name)
	if err != nil {
		return nil, err
	}
	t := &VideoTrack{session: s, name: name, sender: sender}
	t.enabled.Store(true)

	var (
		src     capture.VideoSource
		openErr error
	)
	err = s.rt.queue.Invoke(func() {
		info, format, rerr := capture.ResolveDevice(backend, cfg)
		if rerr != nil {
			openErr = rerr
			return
		}
		src, openErr = backend.OpenVideo(info.ID, format, t.deliverSample)
	})
	if err == nil {
		err = openErr
	}
	if err != nil {
		if cerr := sender.Close(); cerr != nil {
			s.log.Debugf("track %s: sender close after failed open: %v", name, cerr)
		}
		return nil, err
	}
	t.source = src

	s.mu.Lock()
	s.videoTracks = append(s.videoTracks, t)
	s.mu.Unlock()
	s.log.Debugf("video track %s added from device", name)
	return t, nil
}

// AddVideoTrackFromExternalSource binds a caller-fed source to a new engine
// sender. The track reads from the source for as long as both live; the
// caller keeps the source alive while the track needs output.
func (s *Session) AddVideoTrackFromExternalSource(name string, src *ExternalVideoSource) (*VideoTrack, error) {
	if s.closed.Load() {
		return nil, engine.ErrPeerClosed
	}
	if name == "" {
		name = DefaultExternalTrackName
	}

	sender, err := s.eng.AddVideoSender(name)
	if err != nil {
		return nil, err
	}
	t := &VideoTrack{session: s, name: name, sender: sender, external: src}
	t.enabled.Store(true)

	if err := src.attach(t); err != nil {
		if cerr := sender.Close(); cerr != nil {
			s.log.Debugf("track %s: sender close after failed attach: %v", name, cerr)
		}
		return nil, err
	}

	s.mu.Lock()
	s.videoTracks = append(s.videoTracks, t)
	s.mu.Unlock()
	s.log.Debugf("video track %s added from external source", name)
	return t, nil
}

// RemoveVideoTrack detaches the track from the session and stops it.
func (s *Session) RemoveVideoTrack(t *VideoTrack) error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}

	s.mu.Lock()
	found := false
	for i, cur := range s.videoTracks {
		if cur == t {
			s.videoTracks = append(s.videoTracks[:i], s.videoTracks[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: track not attached", engine.ErrNotFound)
	}
	t.stop()
	return nil
}

// RemoveVideoTracksFromSource detaches every track bound to src and
// returns them. Zero matches is not an error.
func (s *Session) RemoveVideoTracksFromSource(src *ExternalVideoSource) ([]*VideoTrack, error) {
	if s.closed.Load() {
		return nil, engine.ErrPeerClosed
	}

	s.mu.Lock()
	var keep, drop []*VideoTrack
	for _, t := range s.videoTracks {
		if t.external == src {
			drop = append(drop, t)
		} else {
			keep = append(keep, t)
		}
	}
	s.videoTracks = keep
	s.mu.Unlock()

	for _, t := range drop {
		t.stop()
	}
	return drop, nil
}
