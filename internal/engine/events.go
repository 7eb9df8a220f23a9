package engine

import "github.com/thesyncim/rtcbridge/pkg/frame"

// Event is the tagged union of session events. Engines deliver events from
// their own goroutines; consumers switch on the concrete type.
type Event interface {
	isEvent()
}

// Connected fires once the peer connection reaches the connected state.
type Connected struct{}

// LocalSDPReady delivers a locally generated session description that the
// caller must forward to the remote peer.
type LocalSDPReady struct {
	Kind SDPType
	SDP  string
}

// ICECandidateReady delivers a locally gathered candidate for forwarding.
type ICECandidateReady struct {
	Candidate  string
	MLineIndex int32
	Mid        string
}

// ICEStateChanged reports ICE connection state transitions.
type ICEStateChanged struct {
	State ICEState
}

// ICEGatheringStateChanged reports candidate-gathering progress.
type ICEGatheringStateChanged struct {
	State ICEGatheringState
}

// RenegotiationNeeded signals that the session's transceivers changed and a
// new offer is required.
type RenegotiationNeeded struct{}

// TrackAdded reports a remote track joining the session.
type TrackAdded struct {
	Kind TrackKind
}

// TrackRemoved reports a remote track leaving the session.
type TrackRemoved struct {
	Kind TrackKind
}

// DataChannelAdded reports a channel announced by the remote peer. The
// channel has no event handler yet; the consumer attaches one via OnEvent.
type DataChannelAdded struct {
	Channel DataChannel
}

// RemoteVideoFrame delivers one decoded remote video frame. Only engines
// with a decode path emit it.
type RemoteVideoFrame struct {
	Frame *frame.I420AVideoFrame
}

// RemoteAudioFrame delivers one decoded remote audio frame.
type RemoteAudioFrame struct {
	Frame *frame.AudioFrame
}

func (Connected) isEvent()                {}
func (LocalSDPReady) isEvent()            {}
func (ICECandidateReady) isEvent()        {}
func (ICEStateChanged) isEvent()          {}
func (ICEGatheringStateChanged) isEvent() {}
func (RenegotiationNeeded) isEvent()      {}
func (TrackAdded) isEvent()               {}
func (TrackRemoved) isEvent()             {}
func (DataChannelAdded) isEvent()         {}
func (RemoteVideoFrame) isEvent()         {}
func (RemoteAudioFrame) isEvent()         {}

// DataChannelEvent is the tagged union of per-channel events.
type DataChannelEvent interface {
	isDataChannelEvent()
}

// DataChannelMessage delivers one received message. Data is owned by the
// receiver and valid only for the duration of the callback.
type DataChannelMessage struct {
	Data []byte
}

// DataChannelStateChanged reports channel lifecycle transitions.
type DataChannelStateChanged struct {
	State DataChannelState
	ID    int32
}

// DataChannelBuffering reports outgoing buffer occupancy changes.
type DataChannelBuffering struct {
	Previous uint64
	Current  uint64
	Limit    uint64
}

func (DataChannelMessage) isDataChannelEvent()      {}
func (DataChannelStateChanged) isDataChannelEvent() {}
func (DataChannelBuffering) isDataChannelEvent()    {}
