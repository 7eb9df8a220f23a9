package interop

import (
	"github.com/thesyncim/rtcbridge/internal/capture"
	"github.com/thesyncim/rtcbridge/internal/handle"
	"github.com/thesyncim/rtcbridge/internal/session"
)

func resolveVideoTrack(h Handle) (*session.VideoTrack, Result) {
	v, ok := registry.Get(h, handle.KindLocalVideoTrack)
	if !ok {
		return nil, ResultInvalidNativeHandle
	}
	return v.(*session.VideoTrack), ResultSuccess
}

// PeerConnectionAddLocalVideoTrack opens a capture device selected by cfg
// and attaches it to the session as a new local video track. Device
// acquisition runs on the signaling queue regardless of the calling
// goroutine. The handle written to out carries the caller's own reference
// on top of the session's; release it with LocalVideoTrackRemoveRef.
func PeerConnectionAddLocalVideoTrack(h Handle, name string, cfg *VideoDeviceConfig, out *Handle) Result {
	if out == nil {
		return ResultInvalidParameter
	}
	*out = Null
	if name == "" {
		return ResultInvalidParameter
	}
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}

	var vc capture.VideoConfig
	if cfg != nil {
		vc = capture.VideoConfig{
			DeviceID:  cfg.DeviceID,
			Width:     cfg.Width,
			Height:    cfg.Height,
			Framerate: cfg.Framerate,
		}
	}
	t, err := pc.sess.AddVideoTrackFromDevice(name, vc)
	if err != nil {
		return resultFromError(err)
	}
	*out = pc.adoptTrack(t, Null)
	return ResultSuccess
}

// PeerConnectionAddLocalVideoTrackFromExternalSource attaches a track fed
// by a caller-driven external source instead of a capture device. An empty
// name picks a fixed default. The track keeps the source alive until it is
// removed; the caller keeps the source producing for as long as the track
// should have output.
func PeerConnectionAddLocalVideoTrackFromExternalSource(h Handle, name string, source Handle, out *Handle) Result {
	if out == nil {
		return ResultInvalidParameter
	}
	*out = Null
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	src, res := resolveExternalSource(source)
	if res != ResultSuccess {
		return res
	}

	t, err := pc.sess.AddVideoTrackFromExternalSource(name, src)
	if err != nil {
		return resultFromError(err)
	}
	*out = pc.adoptTrack(t, source)
	return ResultSuccess
}

// PeerConnectionRemoveLocalVideoTrack detaches the track from the session
// and drops the session's reference. The caller's reference on the track
// handle stays valid until released.
func PeerConnectionRemoveLocalVideoTrack(h Handle, track Handle) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	t, res := resolveVideoTrack(track)
	if res != ResultSuccess {
		return res
	}
	if err := pc.sess.RemoveVideoTrack(t); err != nil {
		return resultFromError(err)
	}
	pc.releaseTrack(t)
	return ResultSuccess
}

// PeerConnectionRemoveLocalVideoTracksFromSource detaches every track that
// was created from the given external source. Zero matches is a success.
func PeerConnectionRemoveLocalVideoTracksFromSource(h Handle, source Handle) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	src, res := resolveExternalSource(source)
	if res != ResultSuccess {
		return res
	}
	dropped, err := pc.sess.RemoveVideoTracksFromSource(src)
	if err != nil {
		return resultFromError(err)
	}
	for _, t := range dropped {
		pc.releaseTrack(t)
	}
	return ResultSuccess
}

// LocalVideoTrackAddRef takes one additional reference on the track handle.
func LocalVideoTrackAddRef(h Handle) Result {
	if h.Kind() != handle.KindLocalVideoTrack || !registry.AddRef(h) {
		return ResultInvalidNativeHandle
	}
	return ResultSuccess
}

// LocalVideoTrackRemoveRef drops one reference. The handle goes stale on
// the final release; the track itself stops when the session detaches it.
func LocalVideoTrackRemoveRef(h Handle) Result {
	if h.Kind() != handle.KindLocalVideoTrack {
		return ResultInvalidNativeHandle
	}
	if _, _, ok := registry.Release(h); !ok {
		return ResultInvalidNativeHandle
	}
	return ResultSuccess
}

// LocalVideoTrackSetEnabled gates the track's frame output without
// detaching it from the session or touching the device.
func LocalVideoTrackSetEnabled(h Handle, enabled bool) Result {
	t, res := resolveVideoTrack(h)
	if res != ResultSuccess {
		return res
	}
	t.SetEnabled(enabled)
	return ResultSuccess
}

// LocalVideoTrackIsEnabled reports whether the track produces output.
// False when the handle does not resolve.
func LocalVideoTrackIsEnabled(h Handle) bool {
	t, res := resolveVideoTrack(h)
	if res != ResultSuccess {
		return false
	}
	return t.Enabled()
}
