package interop

import (
	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// Each register call stores one (callback, userData) pair in the slot of
// the matching event kind. Registering again replaces the previous pair
// silently; a nil callback disables delivery for that kind. Events are
// delivered from engine goroutines, so a callback may fire before its
// registration call has returned.

func PeerConnectionRegisterConnectedCallback(h Handle, cb ConnectedCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnConnected(nil)
		return ResultSuccess
	}
	pc.sess.SetOnConnected(func() { cb(userData) })
	return ResultSuccess
}

func PeerConnectionRegisterLocalSdpReadyCallback(h Handle, cb LocalSDPReadyCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnLocalSDPReady(nil)
		return ResultSuccess
	}
	pc.sess.SetOnLocalSDPReady(func(kind engine.SDPType, sdp string) {
		cb(userData, SDPType(kind), sdp)
	})
	return ResultSuccess
}

func PeerConnectionRegisterIceCandidateReadyCallback(h Handle, cb ICECandidateReadyCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnICECandidateReady(nil)
		return ResultSuccess
	}
	pc.sess.SetOnICECandidateReady(func(candidate string, mlineIndex int32, mid string) {
		cb(userData, candidate, mlineIndex, mid)
	})
	return ResultSuccess
}

func PeerConnectionRegisterIceStateChangedCallback(h Handle, cb ICEStateChangedCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnICEStateChanged(nil)
		return ResultSuccess
	}
	pc.sess.SetOnICEStateChanged(func(state engine.ICEState) {
		cb(userData, ICEState(state))
	})
	return ResultSuccess
}

func PeerConnectionRegisterIceGatheringStateChangedCallback(h Handle, cb ICEGatheringStateChangedCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnICEGatheringStateChanged(nil)
		return ResultSuccess
	}
	pc.sess.SetOnICEGatheringStateChanged(func(state engine.ICEGatheringState) {
		cb(userData, ICEGatheringState(state))
	})
	return ResultSuccess
}

func PeerConnectionRegisterRenegotiationNeededCallback(h Handle, cb RenegotiationNeededCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnRenegotiationNeeded(nil)
		return ResultSuccess
	}
	pc.sess.SetOnRenegotiationNeeded(func() { cb(userData) })
	return ResultSuccess
}

func PeerConnectionRegisterTrackAddedCallback(h Handle, cb TrackAddedCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnTrackAdded(nil)
		return ResultSuccess
	}
	pc.sess.SetOnTrackAdded(func(kind engine.TrackKind) {
		cb(userData, TrackKind(kind))
	})
	return ResultSuccess
}

func PeerConnectionRegisterTrackRemovedCallback(h Handle, cb TrackRemovedCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnTrackRemoved(nil)
		return ResultSuccess
	}
	pc.sess.SetOnTrackRemoved(func(kind engine.TrackKind) {
		cb(userData, TrackKind(kind))
	})
	return ResultSuccess
}

// The data-channel-added/removed slots live on the boundary object rather
// than the session: the session's own slots are occupied by the handle
// bookkeeping that materializes wrapper objects before the caller hears
// about a channel.

func PeerConnectionRegisterDataChannelAddedCallback(h Handle, cb DataChannelAddedCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	pc.mu.Lock()
	pc.onChAdded = cb
	pc.onChAddedUD = userData
	pc.mu.Unlock()
	return ResultSuccess
}

func PeerConnectionRegisterDataChannelRemovedCallback(h Handle, cb DataChannelRemovedCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	pc.mu.Lock()
	pc.onChRemoved = cb
	pc.onChRemovedUD = userData
	pc.mu.Unlock()
	return ResultSuccess
}

func PeerConnectionRegisterI420ARemoteVideoFrameCallback(h Handle, cb I420AVideoFrameCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnRemoteI420AFrame(nil)
		return ResultSuccess
	}
	pc.sess.SetOnRemoteI420AFrame(func(f *frame.I420AVideoFrame) {
		cb(userData, f)
	})
	return ResultSuccess
}

func PeerConnectionRegisterArgb32RemoteVideoFrameCallback(h Handle, cb ARGBVideoFrameCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnRemoteARGBFrame(nil)
		return ResultSuccess
	}
	pc.sess.SetOnRemoteARGBFrame(func(f *frame.ARGBVideoFrame) {
		cb(userData, f)
	})
	return ResultSuccess
}

func PeerConnectionRegisterLocalAudioFrameCallback(h Handle, cb AudioFrameCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnLocalAudioFrame(nil)
		return ResultSuccess
	}
	pc.sess.SetOnLocalAudioFrame(func(f *frame.AudioFrame) {
		cb(userData, f)
	})
	return ResultSuccess
}

func PeerConnectionRegisterRemoteAudioFrameCallback(h Handle, cb AudioFrameCallback, userData uintptr) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	if cb == nil {
		pc.sess.SetOnRemoteAudioFrame(nil)
		return ResultSuccess
	}
	pc.sess.SetOnRemoteAudioFrame(func(f *frame.AudioFrame) {
		cb(userData, f)
	})
	return ResultSuccess
}
