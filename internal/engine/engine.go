// Package engine defines the peer-connection engine boundary: the interfaces
// the session layer drives, the tagged event union engines emit, and the
// production adapter backed by pion/webrtc. Negotiation, transport and media
// plumbing live behind these interfaces; everything above them deals only in
// handles, callbacks and flat records.
package engine

import (
	"github.com/thesyncim/rtcbridge/pkg/frame"
	"github.com/thesyncim/rtcbridge/pkg/stats"
)

// SDPType distinguishes the two session description kinds that cross the
// boundary.
type SDPType int32

const (
	SDPTypeOffer  SDPType = 0
	SDPTypeAnswer SDPType = 1
)

func (t SDPType) String() string {
	switch t {
	case SDPTypeOffer:
		return "offer"
	case SDPTypeAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// ICEState is the ICE connection state reported to state-change callbacks.
type ICEState int32

const (
	ICEStateNew          ICEState = 0
	ICEStateChecking     ICEState = 1
	ICEStateConnected    ICEState = 2
	ICEStateCompleted    ICEState = 3
	ICEStateFailed       ICEState = 4
	ICEStateDisconnected ICEState = 5
	ICEStateClosed       ICEState = 6
)

func (s ICEState) String() string {
	switch s {
	case ICEStateNew:
		return "new"
	case ICEStateChecking:
		return "checking"
	case ICEStateConnected:
		return "connected"
	case ICEStateCompleted:
		return "completed"
	case ICEStateFailed:
		return "failed"
	case ICEStateDisconnected:
		return "disconnected"
	case ICEStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ICEGatheringState is the candidate-gathering state.
type ICEGatheringState int32

const (
	ICEGatheringStateNew       ICEGatheringState = 0
	ICEGatheringStateGathering ICEGatheringState = 1
	ICEGatheringStateComplete  ICEGatheringState = 2
)

func (s ICEGatheringState) String() string {
	switch s {
	case ICEGatheringStateNew:
		return "new"
	case ICEGatheringStateGathering:
		return "gathering"
	case ICEGatheringStateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// TrackKind tags track-added/removed events.
type TrackKind int32

const (
	TrackKindUnknown TrackKind = 0
	TrackKindAudio   TrackKind = 1
	TrackKindVideo   TrackKind = 2
)

func (k TrackKind) String() string {
	switch k {
	case TrackKindAudio:
		return "audio"
	case TrackKindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// DataChannelState mirrors the channel lifecycle reported to state
// callbacks.
type DataChannelState int32

const (
	DataChannelConnecting DataChannelState = 0
	DataChannelOpen       DataChannelState = 1
	DataChannelClosing    DataChannelState = 2
	DataChannelClosed     DataChannelState = 3
)

// ICETransportPolicy restricts which candidates ICE may use.
type ICETransportPolicy int32

const (
	ICETransportAll   ICETransportPolicy = 0
	ICETransportRelay ICETransportPolicy = 1
)

// ICEServer is one STUN/TURN server entry.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Config is the per-session configuration forwarded to the engine. It is
// validated by the engine, not by the layers above.
type Config struct {
	ICEServers         []ICEServer
	ICETransportPolicy ICETransportPolicy
}

// BitrateSettings carries optional encoder bitrate bounds in bits per
// second. Negative values leave the corresponding bound unset.
type BitrateSettings struct {
	MinBps   int32
	StartBps int32
	MaxBps   int32
}

// DataChannelConfig fixes a channel's identity and delivery semantics at
// creation. ID >= 0 requests an out-of-band negotiated channel with that
// exact id; a negative ID lets the engine assign one in-band.
type DataChannelConfig struct {
	ID       int32
	Label    string
	Ordered  bool
	Reliable bool
}

// Engine creates sessions. One engine is shared by every session of the
// process-wide runtime.
type Engine interface {
	// NewSession opens a peer connection. Events are delivered to emit from
	// engine-internal goroutines, never from the goroutine calling into the
	// session.
	NewSession(cfg Config, emit func(Event)) (Session, error)
	Close() error
}

// Session is one peer connection.
//
// Negotiation triggers (CreateOffer, CreateAnswer) report synchronous
// accept/reject; the resulting SDP arrives later via a LocalSDPReady event.
type Session interface {
	CreateOffer() error
	CreateAnswer() error
	SetRemoteDescription(kind SDPType, sdp string) error
	AddICECandidate(candidate string, mlineIndex int32, mid string) error

	AddVideoSender(trackID string) (VideoSender, error)
	AddAudioSender(trackID string) (AudioSender, error)
	AddDataChannel(cfg DataChannelConfig) (DataChannel, error)

	SetBitrate(b BitrateSettings) error

	// GetStats snapshots the session's low-level statistics records.
	GetStats() ([]stats.Record, error)

	Close() error
}

// VideoSender is one outgoing video track. WriteSample carries encoded
// media from capture shims; WriteFrame carries raw frames from external
// sources.
type VideoSender interface {
	ID() string
	WriteSample(s frame.VideoSample) error
	WriteFrame(f *frame.I420AVideoFrame) error
	Close() error
}

// AudioSender is one outgoing audio track fed PCM16 frames.
type AudioSender interface {
	ID() string
	WriteFrame(f *frame.AudioFrame) error
	Close() error
}

// DataChannel is one bidirectional message stream. OnEvent replaces the
// single event handler; a nil handler disables delivery.
type DataChannel interface {
	ID() int32
	Label() string
	Send(data []byte) error
	BufferedAmount() uint64
	OnEvent(fn func(DataChannelEvent))
	Close() error
}
