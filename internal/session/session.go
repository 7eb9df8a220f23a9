package session

import (
	"sync"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/pkg/frame"
	"github.com/thesyncim/rtcbridge/pkg/stats"
)

// frameRound is the process-wide height alignment applied to delivered
// remote video frames.
var frameRound atomic.Int32

func SetFrameHeightRoundMode(mode frame.HeightRoundMode) { frameRound.Store(int32(mode)) }

func FrameHeightRoundMode() frame.HeightRoundMode {
	return frame.HeightRoundMode(frameRound.Load())
}

// callbacks holds one slot per event kind. Registration replaces the slot
// silently; nil disables delivery. Slots are read on engine goroutines and
// written on caller goroutines, so every access goes through the lock.
type callbacks struct {
	mu                  sync.RWMutex
	connected           func()
	localSDPReady       func(kind engine.SDPType, sdp string)
	iceCandidateReady   func(candidate string, mlineIndex int32, mid string)
	iceStateChanged     func(state engine.ICEState)
	iceGatheringChanged func(state engine.ICEGatheringState)
	renegotiationNeeded func()
	trackAdded          func(kind engine.TrackKind)
	trackRemoved        func(kind engine.TrackKind)
	dataChannelAdded    func(ch *DataChannel)
	dataChannelRemoved  func(ch *DataChannel)
	remoteVideoI420A    func(f *frame.I420AVideoFrame)
	remoteVideoARGB     func(f *frame.ARGBVideoFrame)
	localAudioFrame     func(f *frame.AudioFrame)
	remoteAudioFrame    func(f *frame.AudioFrame)
}

// Session owns the tracks, data channels, and callback slots of one peer
// connection and forwards negotiation to the engine.
type Session struct {
	rt  *Runtime
	log logging.LeveledLogger
	eng engine.Session

	cb callbacks

	mu          sync.Mutex
	videoTracks []*VideoTrack
	audioTrack  *AudioTrack
	channels    []*DataChannel

	closed atomic.Bool
}

func New(rt *Runtime, cfg engine.Config) (*Session, error) {
	if err := rt.sessionOpened(); err != nil {
		return nil, err
	}
	s := &Session{rt: rt, log: rt.lf.NewLogger("session")}
	eng, err := rt.eng.NewSession(cfg, s.handleEvent)
	if err != nil {
		rt.sessionClosed()
		return nil, err
	}
	s.eng = eng
	s.log.Debugf("session created")
	return s, nil
}

func (s *Session) SetOnConnected(fn func()) {
	s.cb.mu.Lock()
	s.cb.connected = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnLocalSDPReady(fn func(kind engine.SDPType, sdp string)) {
	s.cb.mu.Lock()
	s.cb.localSDPReady = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnICECandidateReady(fn func(candidate string, mlineIndex int32, mid string)) {
	s.cb.mu.Lock()
	s.cb.iceCandidateReady = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnICEStateChanged(fn func(state engine.ICEState)) {
	s.cb.mu.Lock()
	s.cb.iceStateChanged = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnICEGatheringStateChanged(fn func(state engine.ICEGatheringState)) {
	s.cb.mu.Lock()
	s.cb.iceGatheringChanged = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnRenegotiationNeeded(fn func()) {
	s.cb.mu.Lock()
	s.cb.renegotiationNeeded = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnTrackAdded(fn func(kind engine.TrackKind)) {
	s.cb.mu.Lock()
	s.cb.trackAdded = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnTrackRemoved(fn func(kind engine.TrackKind)) {
	s.cb.mu.Lock()
	s.cb.trackRemoved = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnDataChannelAdded(fn func(ch *DataChannel)) {
	s.cb.mu.Lock()
	s.cb.dataChannelAdded = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnDataChannelRemoved(fn func(ch *DataChannel)) {
	s.cb.mu.Lock()
	s.cb.dataChannelRemoved = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnRemoteI420AFrame(fn func(f *frame.I420AVideoFrame)) {
	s.cb.mu.Lock()
	s.cb.remoteVideoI420A = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnRemoteARGBFrame(fn func(f *frame.ARGBVideoFrame)) {
	s.cb.mu.Lock()
	s.cb.remoteVideoARGB = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnLocalAudioFrame(fn func(f *frame.AudioFrame)) {
	s.cb.mu.Lock()
	s.cb.localAudioFrame = fn
	s.cb.mu.Unlock()
}

func (s *Session) SetOnRemoteAudioFrame(fn func(f *frame.AudioFrame)) {
	s.cb.mu.Lock()
	s.cb.remoteAudioFrame = fn
	s.cb.mu.Unlock()
}

// handleEvent runs on whichever engine goroutine produced the event. It
// fans the tagged union out to the registered slot for that kind.
func (s *Session) handleEvent(ev engine.Event) {
	if s.closed.Load() {
		return
	}
	switch e := ev.(type) {
	case engine.Connected:
		s.cb.mu.RLock()
		fn := s.cb.connected
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("connected", fn)
		}
	case engine.LocalSDPReady:
		s.cb.mu.RLock()
		fn := s.cb.localSDPReady
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("local sdp ready", func() { fn(e.Kind, e.SDP) })
		}
	case engine.ICECandidateReady:
		s.cb.mu.RLock()
		fn := s.cb.iceCandidateReady
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("ice candidate ready", func() { fn(e.Candidate, e.MLineIndex, e.Mid) })
		}
	case engine.ICEStateChanged:
		s.cb.mu.RLock()
		fn := s.cb.iceStateChanged
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("ice state changed", func() { fn(e.State) })
		}
	case engine.ICEGatheringStateChanged:
		s.cb.mu.RLock()
		fn := s.cb.iceGatheringChanged
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("ice gathering state changed", func() { fn(e.State) })
		}
	case engine.RenegotiationNeeded:
		s.cb.mu.RLock()
		fn := s.cb.renegotiationNeeded
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("renegotiation needed", fn)
		}
	case engine.TrackAdded:
		s.cb.mu.RLock()
		fn := s.cb.trackAdded
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("track added", func() { fn(e.Kind) })
		}
	case engine.TrackRemoved:
		s.cb.mu.RLock()
		fn := s.cb.trackRemoved
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("track removed", func() { fn(e.Kind) })
		}
	case engine.DataChannelAdded:
		s.acceptRemoteChannel(e.Channel)
	case engine.RemoteVideoFrame:
		s.deliverRemoteVideo(e.Frame)
	case engine.RemoteAudioFrame:
		s.cb.mu.RLock()
		fn := s.cb.remoteAudioFrame
		s.cb.mu.RUnlock()
		if fn != nil {
			s.fire("remote audio frame", func() { fn(e.Frame) })
		}
	}
}

// acceptRemoteChannel wraps a channel announced by the remote peer and
// hands it to the data-channel-added slot.
func (s *Session) acceptRemoteChannel(ch engine.DataChannel) {
	dc := newDataChannel(s, ch)
	s.mu.Lock()
	s.channels = append(s.channels, dc)
	s.mu.Unlock()

	s.cb.mu.RLock()
	fn := s.cb.dataChannelAdded
	s.cb.mu.RUnlock()
	if fn != nil {
		s.fire("data channel added", func() { fn(dc) })
	}
}

func (s *Session) deliverRemoteVideo(f *frame.I420AVideoFrame) {
	s.cb.mu.RLock()
	i420 := s.cb.remoteVideoI420A
	argb := s.cb.remoteVideoARGB
	s.cb.mu.RUnlock()
	if i420 == nil && argb == nil {
		return
	}

	f = frame.RoundHeight(f, FrameHeightRoundMode())
	if i420 != nil {
		s.fire("remote i420a frame", func() { i420(f) })
	}
	if argb != nil {
		converted := frame.I420AToARGB(f)
		s.fire("remote argb frame", func() { argb(converted) })
	}
}

// fire runs a caller-supplied callback and keeps the delivering goroutine
// alive if it panics.
func (s *Session) fire(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("%s callback panicked: %v", name, r)
		}
	}()
	fn()
}

func (s *Session) CreateOffer() error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}
	return s.eng.CreateOffer()
}

func (s *Session) CreateAnswer() error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}
	return s.eng.CreateAnswer()
}

func (s *Session) SetRemoteDescription(kind engine.SDPType, sdp string) error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}
	return s.eng.SetRemoteDescription(kind, sdp)
}

func (s *Session) AddICECandidate(candidate string, mlineIndex int32, mid string) error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}
	return s.eng.AddICECandidate(candidate, mlineIndex, mid)
}

func (s *Session) SetBitrate(b engine.BitrateSettings) error {
	if s.closed.Load() {
		return engine.ErrPeerClosed
	}
	return s.eng.SetBitrate(b)
}

// GetStats snapshots the engine's low-level records. Report construction
// and delivery are the boundary's business.
func (s *Session) GetStats() ([]stats.Record, error) {
	if s.closed.Load() {
		return nil, engine.ErrPeerClosed
	}
	return s.eng.GetStats()
}

// Close tears the session down: channels detach, tracks stop, the engine
// session closes. Safe to call twice.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	channels := s.channels
	tracks := s.videoTracks
	audio := s.audioTrack
	s.channels = nil
	s.videoTracks = nil
	s.audioTrack = nil
	s.mu.Unlock()

	for _, dc := range channels {
		dc.detach()
	}
	for _, t := range tracks {
		t.stop()
	}
	if audio != nil {
		audio.stop()
	}

	err := s.eng.Close()
	s.rt.sessionClosed()
	s.log.Debugf("session closed")
	return err
}
