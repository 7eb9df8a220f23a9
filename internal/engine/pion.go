package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/thesyncim/rtcbridge/pkg/frame"
	"github.com/thesyncim/rtcbridge/pkg/stats"
)

const (
	// Assumed RTP payload size when estimating packet counts for samples
	// the engine packetizes internally.
	rtpPayloadSize = 1200

	// Encoded frames above this size count as huge in sender stats.
	hugeFrameBytes = 256 << 10

	// Outgoing data channel buffer cap reported by buffering events.
	dataChannelBufferLimit = 16 << 20

	bufferedAmountLowThreshold = 512 << 10
)

// PionOptions configures the production engine.
type PionOptions struct {
	LoggerFactory logging.LoggerFactory

	// Mime types announced for local sample tracks. Defaults: VP8, Opus.
	VideoMimeType string
	AudioMimeType string
}

type pionEngine struct {
	api  *webrtc.API
	opts PionOptions
	log  logging.LeveledLogger
}

// NewPionEngine builds the pion/webrtc-backed engine: default codecs,
// default interceptors, and the caller's logger factory wired into the
// setting engine so engine-internal logs share the library's sink.
func NewPionEngine(opts PionOptions) (Engine, error) {
	if opts.LoggerFactory == nil {
		opts.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if opts.VideoMimeType == "" {
		opts.VideoMimeType = webrtc.MimeTypeVP8
	}
	if opts.AudioMimeType == "" {
		opts.AudioMimeType = webrtc.MimeTypeOpus
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register default codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register default interceptors: %w", err)
	}
	settingEngine := webrtc.SettingEngine{}
	settingEngine.LoggerFactory = opts.LoggerFactory

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settingEngine),
	)
	return &pionEngine{
		api:  api,
		opts: opts,
		log:  opts.LoggerFactory.NewLogger("engine"),
	}, nil
}

func (e *pionEngine) Close() error { return nil }

func (e *pionEngine) NewSession(cfg Config, emit func(Event)) (Session, error) {
	pcConfig := webrtc.Configuration{}
	for _, srv := range cfg.ICEServers {
		pcConfig.ICEServers = append(pcConfig.ICEServers, webrtc.ICEServer{
			URLs:       srv.URLs,
			Username:   srv.Username,
			Credential: srv.Credential,
		})
	}
	if cfg.ICETransportPolicy == ICETransportRelay {
		pcConfig.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}

	pc, err := e.api.NewPeerConnection(pcConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: new peer connection: %v", ErrUnknown, err)
	}

	s := &pionSession{
		pc:           pc,
		emit:         emit,
		log:          e.log,
		opts:         e.opts,
		streamID:     uuid.NewString(),
		remoteTracks: make(map[string]*remoteTrackCounter),
	}

	// Callbacks run on pion's goroutines. Each checks closed first so a
	// torn-down session never emits.
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if s.closed.Load() {
			return
		}
		if state == webrtc.PeerConnectionStateConnected {
			s.emit(Connected{})
		}
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if s.closed.Load() || c == nil {
			return
		}
		init := c.ToJSON()
		ev := ICECandidateReady{Candidate: init.Candidate}
		if init.SDPMLineIndex != nil {
			ev.MLineIndex = int32(*init.SDPMLineIndex)
		}
		if init.SDPMid != nil {
			ev.Mid = *init.SDPMid
		}
		s.emit(ev)
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		if s.closed.Load() {
			return
		}
		s.emit(ICEStateChanged{State: mapICEConnectionState(state)})
	})
	pc.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		if s.closed.Load() {
			return
		}
		s.emit(ICEGatheringStateChanged{State: mapICEGathererState(state)})
	})
	pc.OnNegotiationNeeded(func() {
		if s.closed.Load() {
			return
		}
		s.emit(RenegotiationNeeded{})
	})
	pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if s.closed.Load() {
			return
		}
		s.handleRemoteTrack(tr)
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if s.closed.Load() {
			return
		}
		s.emit(DataChannelAdded{Channel: newPionDataChannel(dc)})
	})

	return s, nil
}

type pionSession struct {
	pc       *webrtc.PeerConnection
	emit     func(Event)
	log      logging.LeveledLogger
	opts     PionOptions
	streamID string

	mu           sync.Mutex
	videoSenders []*pionVideoSender
	audioSenders []*pionAudioSender
	// Counter snapshots of removed senders. Their records carry no track
	// identifier, so stats joins skip them.
	detached     []stats.OutboundRTPRecord
	remoteTracks map[string]*remoteTrackCounter
	bitrate      BitrateSettings

	closed atomic.Bool
}

func (s *pionSession) CreateOffer() error {
	if s.closed.Load() {
		return ErrPeerClosed
	}
	go s.negotiate(SDPTypeOffer)
	return nil
}

func (s *pionSession) CreateAnswer() error {
	if s.closed.Load() {
		return ErrPeerClosed
	}
	if s.pc.RemoteDescription() == nil {
		return fmt.Errorf("%w: no remote offer to answer", ErrInvalidOperation)
	}
	go s.negotiate(SDPTypeAnswer)
	return nil
}

// negotiate produces a local description and announces it. The SDP reaches
// the caller through the LocalSDPReady event, never as a return value.
func (s *pionSession) negotiate(kind SDPType) {
	var (
		desc webrtc.SessionDescription
		err  error
	)
	if kind == SDPTypeOffer {
		desc, err = s.pc.CreateOffer(nil)
	} else {
		desc, err = s.pc.CreateAnswer(nil)
	}
	if err != nil {
		s.log.Errorf("create %s: %v", kind, err)
		return
	}
	if err := s.pc.SetLocalDescription(desc); err != nil {
		s.log.Errorf("set local %s: %v", kind, err)
		return
	}
	if s.closed.Load() {
		return
	}
	s.emit(LocalSDPReady{Kind: kind, SDP: desc.SDP})
}

func (s *pionSession) SetRemoteDescription(kind SDPType, sdp string) error {
	if s.closed.Load() {
		return ErrPeerClosed
	}
	var sdpType webrtc.SDPType
	switch kind {
	case SDPTypeOffer:
		sdpType = webrtc.SDPTypeOffer
	case SDPTypeAnswer:
		sdpType = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("%w: sdp type %d", ErrInvalidParam, kind)
	}
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: sdp}); err != nil {
		return mapPionError("set remote description", err)
	}
	return nil
}

func (s *pionSession) AddICECandidate(candidate string, mlineIndex int32, mid string) error {
	if s.closed.Load() {
		return ErrPeerClosed
	}
	init := webrtc.ICECandidateInit{Candidate: candidate}
	if mid != "" {
		init.SDPMid = &mid
	}
	if mlineIndex >= 0 {
		idx := uint16(mlineIndex)
		init.SDPMLineIndex = &idx
	}
	if err := s.pc.AddICECandidate(init); err != nil {
		return mapPionError("add ice candidate", err)
	}
	return nil
}

func (s *pionSession) AddVideoSender(trackID string) (VideoSender, error) {
	if s.closed.Load() {
		return nil, ErrPeerClosed
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: s.opts.VideoMimeType},
		trackID,
		s.streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: new video track: %v", ErrInvalidParam, err)
	}
	rtpSender, err := s.pc.AddTrack(track)
	if err != nil {
		return nil, mapPionError("add video track", err)
	}

	sender := &pionVideoSender{session: s, track: track, sender: rtpSender, id: trackID}
	s.mu.Lock()
	s.videoSenders = append(s.videoSenders, sender)
	s.mu.Unlock()
	return sender, nil
}

func (s *pionSession) AddAudioSender(trackID string) (AudioSender, error) {
	if s.closed.Load() {
		return nil, ErrPeerClosed
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: s.opts.AudioMimeType},
		trackID,
		s.streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: new audio track: %v", ErrInvalidParam, err)
	}
	rtpSender, err := s.pc.AddTrack(track)
	if err != nil {
		return nil, mapPionError("add audio track", err)
	}

	sender := &pionAudioSender{session: s, track: track, sender: rtpSender, id: trackID}
	s.mu.Lock()
	s.audioSenders = append(s.audioSenders, sender)
	s.mu.Unlock()
	return sender, nil
}

func (s *pionSession) AddDataChannel(cfg DataChannelConfig) (DataChannel, error) {
	if s.closed.Load() {
		return nil, ErrPeerClosed
	}
	ordered := cfg.Ordered
	init := &webrtc.DataChannelInit{Ordered: &ordered}
	if !cfg.Reliable {
		var retransmits uint16
		init.MaxRetransmits = &retransmits
	}
	if cfg.ID >= 0 {
		negotiated := true
		id := uint16(cfg.ID)
		init.Negotiated = &negotiated
		init.ID = &id
	}
	dc, err := s.pc.CreateDataChannel(cfg.Label, init)
	if err != nil {
		return nil, mapPionError("create data channel", err)
	}
	return newPionDataChannel(dc), nil
}

// SetBitrate merges the given bounds into the session's record; negative
// values leave the corresponding bound unchanged. Local tracks carry
// caller-encoded samples, so there is no engine-side encoder to apply the
// bounds to: they are accepted, merged, and logged.
func (s *pionSession) SetBitrate(b BitrateSettings) error {
	if s.closed.Load() {
		return ErrPeerClosed
	}
	s.mu.Lock()
	if b.MinBps >= 0 {
		s.bitrate.MinBps = b.MinBps
	}
	if b.StartBps >= 0 {
		s.bitrate.StartBps = b.StartBps
	}
	if b.MaxBps >= 0 {
		s.bitrate.MaxBps = b.MaxBps
	}
	applied := s.bitrate
	s.mu.Unlock()
	s.log.Debugf("bitrate bounds min=%d start=%d max=%d", applied.MinBps, applied.StartBps, applied.MaxBps)
	return nil
}

func (s *pionSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.pc.Close(); err != nil {
		return fmt.Errorf("%w: close peer connection: %v", ErrUnknown, err)
	}
	return nil
}

func (s *pionSession) handleRemoteTrack(tr *webrtc.TrackRemote) {
	kind := TrackKindVideo
	statKind := stats.KindVideo
	if tr.Kind() == webrtc.RTPCodecTypeAudio {
		kind = TrackKindAudio
		statKind = stats.KindAudio
	}

	counter := &remoteTrackCounter{id: tr.ID(), kind: statKind}
	s.mu.Lock()
	s.remoteTracks[tr.ID()] = counter
	s.mu.Unlock()

	s.emit(TrackAdded{Kind: kind})
	go s.pumpRemoteTrack(tr, counter, kind)
}

func (s *pionSession) detachVideoSender(v *pionVideoSender) {
	s.mu.Lock()
	for i, cur := range s.videoSenders {
		if cur == v {
			s.videoSenders = append(s.videoSenders[:i], s.videoSenders[i+1:]...)
			break
		}
	}
	rec := v.outboundRecord()
	rec.TrackID = ""
	s.detached = append(s.detached, rec)
	s.mu.Unlock()

	if err := s.pc.RemoveTrack(v.sender); err != nil && !s.closed.Load() {
		s.log.Warnf("remove video track %s: %v", v.id, err)
	}
}

func (s *pionSession) detachAudioSender(a *pionAudioSender) {
	s.mu.Lock()
	for i, cur := range s.audioSenders {
		if cur == a {
			s.audioSenders = append(s.audioSenders[:i], s.audioSenders[i+1:]...)
			break
		}
	}
	rec := a.outboundRecord()
	rec.TrackID = ""
	s.detached = append(s.detached, rec)
	s.mu.Unlock()

	if err := s.pc.RemoveTrack(a.sender); err != nil && !s.closed.Load() {
		s.log.Warnf("remove audio track %s: %v", a.id, err)
	}
}

type pionVideoSender struct {
	session *pionSession
	track   *webrtc.TrackLocalStaticSample
	sender  *webrtc.RTPSender
	id      string
	closed  atomic.Bool

	mu            sync.Mutex
	packetsSent   uint64
	bytesSent     uint64
	framesEncoded uint32
	framesSent    uint32
	hugeFrames    uint32
	timestampUs   int64
}

func (v *pionVideoSender) ID() string { return v.id }

func (v *pionVideoSender) WriteSample(sample frame.VideoSample) error {
	if v.closed.Load() {
		return fmt.Errorf("%w: sender closed", ErrInvalidOperation)
	}
	duration := time.Duration(sample.DurationUs) * time.Microsecond
	if duration <= 0 {
		duration = time.Second / 30
	}
	if err := v.track.WriteSample(media.Sample{Data: sample.Data, Duration: duration}); err != nil {
		return fmt.Errorf("%w: write video sample: %v", ErrUnknown, err)
	}

	v.mu.Lock()
	v.framesEncoded++
	v.framesSent++
	v.bytesSent += uint64(len(sample.Data))
	v.packetsSent += uint64((len(sample.Data) + rtpPayloadSize - 1) / rtpPayloadSize)
	if len(sample.Data) > hugeFrameBytes {
		v.hugeFrames++
	}
	v.timestampUs = time.Now().UnixMicro()
	v.mu.Unlock()
	return nil
}

func (v *pionVideoSender) WriteFrame(f *frame.I420AVideoFrame) error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidParam)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return v.WriteSample(frame.VideoSample{Data: packI420A(f)})
}

func (v *pionVideoSender) Close() error {
	if !v.closed.CompareAndSwap(false, true) {
		return nil
	}
	v.session.detachVideoSender(v)
	return nil
}

type pionAudioSender struct {
	session *pionSession
	track   *webrtc.TrackLocalStaticSample
	sender  *webrtc.RTPSender
	id      string
	closed  atomic.Bool

	mu            sync.Mutex
	packetsSent   uint64
	bytesSent     uint64
	audioLevel    float64
	totalEnergy   float64
	totalDuration float64
	timestampUs   int64
}

func (a *pionAudioSender) ID() string { return a.id }

func (a *pionAudioSender) WriteFrame(f *frame.AudioFrame) error {
	if a.closed.Load() {
		return fmt.Errorf("%w: sender closed", ErrInvalidOperation)
	}
	if f == nil || len(f.Data) == 0 || f.SampleRate == 0 {
		return fmt.Errorf("%w: empty audio frame", ErrInvalidParam)
	}

	buf := make([]byte, len(f.Data)*2)
	for i, sample := range f.Data {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(sample))
	}
	duration := f.Duration()
	if err := a.track.WriteSample(media.Sample{Data: buf, Duration: duration}); err != nil {
		return fmt.Errorf("%w: write audio sample: %v", ErrUnknown, err)
	}

	level := peakLevel(f.Data)
	seconds := duration.Seconds()
	a.mu.Lock()
	a.packetsSent++
	a.bytesSent += uint64(len(buf))
	a.audioLevel = level
	a.totalEnergy += level * level * seconds
	a.totalDuration += seconds
	a.timestampUs = time.Now().UnixMicro()
	a.mu.Unlock()
	return nil
}

func (a *pionAudioSender) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.session.detachAudioSender(a)
	return nil
}

type pionDataChannel struct {
	dc     *webrtc.DataChannel
	closed atomic.Bool

	mu       sync.RWMutex
	handler  func(DataChannelEvent)
	buffered uint64
}

func newPionDataChannel(dc *webrtc.DataChannel) *pionDataChannel {
	d := &pionDataChannel{dc: dc}
	dc.SetBufferedAmountLowThreshold(bufferedAmountLowThreshold)
	dc.OnOpen(func() { d.fireState(DataChannelOpen) })
	dc.OnClose(func() { d.fireState(DataChannelClosed) })
	dc.OnMessage(func(m webrtc.DataChannelMessage) { d.fire(DataChannelMessage{Data: m.Data}) })
	dc.OnBufferedAmountLow(func() { d.fireBuffering() })
	return d
}

func (d *pionDataChannel) ID() int32 {
	if id := d.dc.ID(); id != nil {
		return int32(*id)
	}
	return -1
}

func (d *pionDataChannel) Label() string { return d.dc.Label() }

func (d *pionDataChannel) BufferedAmount() uint64 { return d.dc.BufferedAmount() }

func (d *pionDataChannel) OnEvent(fn func(DataChannelEvent)) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
}

func (d *pionDataChannel) Send(data []byte) error {
	if d.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrDataChannelNotOpen
	}
	if err := d.dc.Send(data); err != nil {
		return fmt.Errorf("%w: send: %v", ErrUnknown, err)
	}
	d.fireBuffering()
	return nil
}

func (d *pionDataChannel) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.dc.Close()
}

func (d *pionDataChannel) fire(ev DataChannelEvent) {
	d.mu.RLock()
	fn := d.handler
	d.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (d *pionDataChannel) fireState(state DataChannelState) {
	d.fire(DataChannelStateChanged{State: state, ID: d.ID()})
}

func (d *pionDataChannel) fireBuffering() {
	current := d.dc.BufferedAmount()
	d.mu.Lock()
	previous := d.buffered
	d.buffered = current
	d.mu.Unlock()
	d.fire(DataChannelBuffering{Previous: previous, Current: current, Limit: dataChannelBufferLimit})
}

func mapPionError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, webrtc.ErrConnectionClosed) {
		return fmt.Errorf("%w: %s: %v", ErrPeerClosed, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnknown, op, err)
}

func mapICEConnectionState(state webrtc.ICEConnectionState) ICEState {
	switch state {
	case webrtc.ICEConnectionStateChecking:
		return ICEStateChecking
	case webrtc.ICEConnectionStateConnected:
		return ICEStateConnected
	case webrtc.ICEConnectionStateCompleted:
		return ICEStateCompleted
	case webrtc.ICEConnectionStateFailed:
		return ICEStateFailed
	case webrtc.ICEConnectionStateDisconnected:
		return ICEStateDisconnected
	case webrtc.ICEConnectionStateClosed:
		return ICEStateClosed
	default:
		return ICEStateNew
	}
}

func mapICEGathererState(state webrtc.ICEGatheringState) ICEGatheringState {
	switch state {
	case webrtc.ICEGatheringStateGathering:
		return ICEGatheringStateGathering
	case webrtc.ICEGatheringStateComplete:
		return ICEGatheringStateComplete
	default:
		return ICEGatheringStateNew
	}
}

// packI420A serializes frame planes into one tightly packed buffer, the
// layout sample consumers on the far side expect.
func packI420A(f *frame.I420AVideoFrame) []byte {
	width, height := int(f.Width), int(f.Height)
	chromaW, chromaH := int(f.ChromaWidth()), int(f.ChromaHeight())

	size := width*height + 2*chromaW*chromaH
	if f.HasAlpha() {
		size += width * height
	}
	buf := make([]byte, 0, size)
	buf = appendPlane(buf, f.YData, int(f.YStride), width, height)
	buf = appendPlane(buf, f.UData, int(f.UStride), chromaW, chromaH)
	buf = appendPlane(buf, f.VData, int(f.VStride), chromaW, chromaH)
	if f.HasAlpha() {
		buf = appendPlane(buf, f.AData, int(f.AStride), width, height)
	}
	return buf
}

func appendPlane(dst, src []byte, stride, width, rows int) []byte {
	for r := 0; r < rows; r++ {
		dst = append(dst, src[r*stride:r*stride+width]...)
	}
	return dst
}

func peakLevel(samples []int16) float64 {
	var peak int16
	for _, s := range samples {
		if s < 0 {
			if s == -32768 {
				return 1
			}
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return float64(peak) / 32767
}
