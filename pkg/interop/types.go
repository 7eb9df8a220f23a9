package interop

import (
	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// The enumerations below mirror the engine vocabulary with stable int32
// values so they survive a flat foreign-function boundary unchanged.

// SDPType distinguishes offers from answers.
type SDPType int32

const (
	SDPTypeOffer  SDPType = 0
	SDPTypeAnswer SDPType = 1
)

func (t SDPType) String() string { return engine.SDPType(t).String() }

// ICEState is the ICE connection state.
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

func (s ICEState) String() string { return engine.ICEState(s).String() }

// ICEGatheringState is the candidate-gathering state.
type ICEGatheringState int32

const (
	ICEGatheringStateNew       ICEGatheringState = 0
	ICEGatheringStateGathering ICEGatheringState = 1
	ICEGatheringStateComplete  ICEGatheringState = 2
)

func (s ICEGatheringState) String() string { return engine.ICEGatheringState(s).String() }

// TrackKind tags track-added/removed events.
type TrackKind int32

const (
	TrackKindUnknown TrackKind = 0
	TrackKindAudio   TrackKind = 1
	TrackKindVideo   TrackKind = 2
)

func (k TrackKind) String() string { return engine.TrackKind(k).String() }

// DataChannelState is the channel lifecycle reported to state callbacks.
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

// SessionConfig is the per-session configuration of PeerConnectionCreate.
type SessionConfig struct {
	ICEServers         []ICEServer
	ICETransportPolicy ICETransportPolicy
}

func (c SessionConfig) engineConfig() engine.Config {
	cfg := engine.Config{ICETransportPolicy: engine.ICETransportPolicy(c.ICETransportPolicy)}
	for _, s := range c.ICEServers {
		cfg.ICEServers = append(cfg.ICEServers, engine.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return cfg
}

// VideoDeviceConfig narrows device selection for device-backed tracks.
// Zero fields are wildcards.
type VideoDeviceConfig struct {
	DeviceID  string
	Width     uint32
	Height    uint32
	Framerate float64
}

// Session event callbacks. Each registration stores one (callback,
// userData) pair; registering again replaces it, nil disables delivery.
type (
	ConnectedCallback                func(userData uintptr)
	LocalSDPReadyCallback            func(userData uintptr, kind SDPType, sdp string)
	ICECandidateReadyCallback        func(userData uintptr, candidate string, mlineIndex int32, mid string)
	ICEStateChangedCallback          func(userData uintptr, state ICEState)
	ICEGatheringStateChangedCallback func(userData uintptr, state ICEGatheringState)
	RenegotiationNeededCallback      func(userData uintptr)
	TrackAddedCallback               func(userData uintptr, kind TrackKind)
	TrackRemovedCallback             func(userData uintptr, kind TrackKind)
	DataChannelAddedCallback         func(userData uintptr, interopHandle uintptr, channel Handle)
	DataChannelRemovedCallback       func(userData uintptr, interopHandle uintptr, channel Handle)
	I420AVideoFrameCallback          func(userData uintptr, f *frame.I420AVideoFrame)
	ARGBVideoFrameCallback           func(userData uintptr, f *frame.ARGBVideoFrame)
	AudioFrameCallback               func(userData uintptr, f *frame.AudioFrame)
)

// Data channel callbacks.
type (
	DataChannelMessageCallback   func(userData uintptr, data []byte)
	DataChannelBufferingCallback func(userData uintptr, previous, current, limit uint64)
	DataChannelStateCallback     func(userData uintptr, state DataChannelState, id int32)
)

// DataChannelCallbacks carries the three per-channel callback slots in
// the shape channel creation takes them.
type DataChannelCallbacks struct {
	Message           DataChannelMessageCallback
	MessageUserData   uintptr
	Buffering         DataChannelBufferingCallback
	BufferingUserData uintptr
	State             DataChannelStateCallback
	StateUserData     uintptr
}

// Stats callbacks.
type (
	StatsReportCallback func(userData uintptr, report Handle)
	StatsObjectCallback func(userData uintptr, object any)
)

// Enumeration callbacks.
type (
	VideoDeviceEnumCallback func(userData uintptr, id, label string)
	VideoFormatEnumCallback func(userData uintptr, width, height uint32, framerate float64, fourcc uint32)
	EnumCompletedCallback   func(userData uintptr)
)

// External source frame-request callbacks. The binding answers each
// request with the matching Complete*FrameRequest call.
type (
	I420AFrameRequestCallback func(userData uintptr, source Handle, requestID uint32, whenMs int64)
	ARGBFrameRequestCallback  func(userData uintptr, source Handle, requestID uint32, whenMs int64)
)

// InteropCallbacks are the wrapper-object constructors the binding
// supplies so remotely announced data channels materialize a caller-side
// object before the added callback fires.
type InteropCallbacks struct {
	// DataChannelCreate builds the caller-side wrapper for a remote
	// channel and returns its correlation handle.
	DataChannelCreate func(parent uintptr, id int32, label string) uintptr

	// DataChannelDestroy releases a wrapper previously built by
	// DataChannelCreate.
	DataChannelDestroy func(ch uintptr)
}
