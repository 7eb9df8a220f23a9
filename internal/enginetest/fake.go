// Package enginetest provides a scripted engine implementation for tests.
// Sessions record the calls they receive, return injected errors, and let
// tests emit events as if the transport produced them.
package enginetest

import (
	"fmt"
	"sync"

	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/pkg/frame"
	"github.com/thesyncim/rtcbridge/pkg/stats"
)

type Fake struct {
	// NewSessionErr, when set, fails every NewSession call.
	NewSessionErr error

	mu       sync.Mutex
	sessions []*FakeSession
	closed   bool
}

func New() *Fake { return &Fake{} }

func (f *Fake) NewSession(cfg engine.Config, emit func(engine.Event)) (engine.Session, error) {
	if f.NewSessionErr != nil {
		return nil, f.NewSessionErr
	}
	s := &FakeSession{Cfg: cfg, emit: emit}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Sessions() []*FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSession(nil), f.sessions...)
}

// Last returns the most recently created session, or nil.
func (f *Fake) Last() *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

type FakeSession struct {
	Cfg engine.Config

	// Injected failures, checked before anything is recorded or created.
	OfferErr       error
	AnswerErr      error
	RemoteErr      error
	CandidateErr   error
	VideoSenderErr error
	AudioSenderErr error
	DataChannelErr error
	BitrateErr     error
	StatsErr       error

	// StatsRecords is returned verbatim from GetStats.
	StatsRecords []stats.Record

	emit func(engine.Event)

	mu           sync.Mutex
	calls        []string
	videoSenders []*FakeVideoSender
	audioSenders []*FakeAudioSender
	dataChannels []*FakeDataChannel
	bitrate      engine.BitrateSettings
	closed       bool
	closeCount   int
}

// Emit delivers an event the way the transport would, on the caller's
// goroutine.
func (s *FakeSession) Emit(ev engine.Event) { s.emit(ev) }

func (s *FakeSession) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *FakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *FakeSession) CreateOffer() error {
	if s.OfferErr != nil {
		return s.OfferErr
	}
	s.record("CreateOffer")
	return nil
}

func (s *FakeSession) CreateAnswer() error {
	if s.AnswerErr != nil {
		return s.AnswerErr
	}
	s.record("CreateAnswer")
	return nil
}

func (s *FakeSession) SetRemoteDescription(kind engine.SDPType, sdp string) error {
	if s.RemoteErr != nil {
		return s.RemoteErr
	}
	s.record(fmt.Sprintf("SetRemoteDescription %s %d", kind, len(sdp)))
	return nil
}

func (s *FakeSession) AddICECandidate(candidate string, mlineIndex int32, mid string) error {
	if s.CandidateErr != nil {
		return s.CandidateErr
	}
	s.record(fmt.Sprintf("AddICECandidate %s %d %s", candidate, mlineIndex, mid))
	return nil
}

func (s *FakeSession) AddVideoSender(trackID string) (engine.VideoSender, error) {
	if s.VideoSenderErr != nil {
		return nil, s.VideoSenderErr
	}
	sender := &FakeVideoSender{TrackID: trackID}
	s.mu.Lock()
	s.calls = append(s.calls, "AddVideoSender "+trackID)
	s.videoSenders = append(s.videoSenders, sender)
	s.mu.Unlock()
	return sender, nil
}

func (s *FakeSession) AddAudioSender(trackID string) (engine.AudioSender, error) {
	if s.AudioSenderErr != nil {
		return nil, s.AudioSenderErr
	}
	sender := &FakeAudioSender{TrackID: trackID}
	s.mu.Lock()
	s.calls = append(s.calls, "AddAudioSender "+trackID)
	s.audioSenders = append(s.audioSenders, sender)
	s.mu.Unlock()
	return sender, nil
}

func (s *FakeSession) AddDataChannel(cfg engine.DataChannelConfig) (engine.DataChannel, error) {
	if s.DataChannelErr != nil {
		return nil, s.DataChannelErr
	}
	ch := &FakeDataChannel{IDValue: cfg.ID, LabelValue: cfg.Label}
	s.mu.Lock()
	s.calls = append(s.calls, "AddDataChannel "+cfg.Label)
	s.dataChannels = append(s.dataChannels, ch)
	s.mu.Unlock()
	return ch, nil
}

func (s *FakeSession) SetBitrate(b engine.BitrateSettings) error {
	if s.BitrateErr != nil {
		return s.BitrateErr
	}
	s.mu.Lock()
	s.calls = append(s.calls, fmt.Sprintf("SetBitrate %d %d %d", b.MinBps, b.StartBps, b.MaxBps))
	s.bitrate = b
	s.mu.Unlock()
	return nil
}

func (s *FakeSession) Bitrate() engine.BitrateSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bitrate
}

func (s *FakeSession) GetStats() ([]stats.Record, error) {
	if s.StatsErr != nil {
		return nil, s.StatsErr
	}
	s.record("GetStats")
	return append([]stats.Record(nil), s.StatsRecords...), nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.closeCount++
	s.mu.Unlock()
	return nil
}

func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeSession) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

func (s *FakeSession) VideoSenders() []*FakeVideoSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakeVideoSender(nil), s.videoSenders...)
}

func (s *FakeSession) AudioSenders() []*FakeAudioSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakeAudioSender(nil), s.audioSenders...)
}

func (s *FakeSession) DataChannels() []*FakeDataChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakeDataChannel(nil), s.dataChannels...)
}

type FakeVideoSender struct {
	TrackID  string
	WriteErr error

	mu      sync.Mutex
	samples []frame.VideoSample
	frames  []*frame.I420AVideoFrame
	closed  bool
}

func (v *FakeVideoSender) ID() string { return v.TrackID }

func (v *FakeVideoSender) WriteSample(sample frame.VideoSample) error {
	if v.WriteErr != nil {
		return v.WriteErr
	}
	stored := sample
	stored.Data = append([]byte(nil), sample.Data...)
	v.mu.Lock()
	v.samples = append(v.samples, stored)
	v.mu.Unlock()
	return nil
}

func (v *FakeVideoSender) WriteFrame(f *frame.I420AVideoFrame) error {
	if v.WriteErr != nil {
		return v.WriteErr
	}
	v.mu.Lock()
	v.frames = append(v.frames, f.Clone())
	v.mu.Unlock()
	return nil
}

func (v *FakeVideoSender) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

func (v *FakeVideoSender) Samples() []frame.VideoSample {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]frame.VideoSample(nil), v.samples...)
}

func (v *FakeVideoSender) Frames() []*frame.I420AVideoFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*frame.I420AVideoFrame(nil), v.frames...)
}

func (v *FakeVideoSender) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

type FakeAudioSender struct {
	TrackID  string
	WriteErr error

	mu     sync.Mutex
	frames []*frame.AudioFrame
	closed bool
}

func (a *FakeAudioSender) ID() string { return a.TrackID }

func (a *FakeAudioSender) WriteFrame(f *frame.AudioFrame) error {
	if a.WriteErr != nil {
		return a.WriteErr
	}
	a.mu.Lock()
	a.frames = append(a.frames, f.Clone())
	a.mu.Unlock()
	return nil
}

func (a *FakeAudioSender) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (a *FakeAudioSender) Frames() []*frame.AudioFrame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*frame.AudioFrame(nil), a.frames...)
}

func (a *FakeAudioSender) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

type FakeDataChannel struct {
	IDValue    int32
	LabelValue string
	SendErr    error

	mu       sync.Mutex
	sent     [][]byte
	buffered uint64
	handler  func(engine.DataChannelEvent)
	closed   bool
}

func (d *FakeDataChannel) ID() int32     { return d.IDValue }
func (d *FakeDataChannel) Label() string { return d.LabelValue }

func (d *FakeDataChannel) Send(data []byte) error {
	if d.SendErr != nil {
		return d.SendErr
	}
	d.mu.Lock()
	d.sent = append(d.sent, append([]byte(nil), data...))
	d.buffered += uint64(len(data))
	d.mu.Unlock()
	return nil
}

func (d *FakeDataChannel) BufferedAmount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffered
}

// SetBufferedAmount overrides the reported outbound queue depth.
func (d *FakeDataChannel) SetBufferedAmount(n uint64) {
	d.mu.Lock()
	d.buffered = n
	d.mu.Unlock()
}

func (d *FakeDataChannel) OnEvent(fn func(engine.DataChannelEvent)) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
}

// Fire invokes the registered event handler the way the transport would.
func (d *FakeDataChannel) Fire(ev engine.DataChannelEvent) {
	d.mu.Lock()
	fn := d.handler
	d.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (d *FakeDataChannel) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *FakeDataChannel) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *FakeDataChannel) Sent() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.sent))
	for i, b := range d.sent {
		out[i] = append([]byte(nil), b...)
	}
	return out
}
