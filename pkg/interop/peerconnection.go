package interop

import (
	"sync"
	"sync/atomic"

	"github.com/thesyncim/rtcbridge/internal/engine"
	"github.com/thesyncim/rtcbridge/internal/handle"
	"github.com/thesyncim/rtcbridge/internal/session"
)

// peerConnection binds one session to its boundary bookkeeping: the
// caller's correlation handle, the wrapper-object constructors, and the
// handles backing the tracks and channels the session owns a reference
// to.
type peerConnection struct {
	sess          *session.Session
	interopHandle uintptr

	mu       sync.Mutex
	cbs      InteropCallbacks
	tracks   map[*session.VideoTrack]Handle
	channels map[*session.DataChannel]Handle

	// trackSources pins the external source a track reads from: the track
	// holds one reference on the source handle until it is removed.
	trackSources map[*session.VideoTrack]Handle

	onChAdded     DataChannelAddedCallback
	onChAddedUD   uintptr
	onChRemoved   DataChannelRemovedCallback
	onChRemovedUD uintptr

	closed atomic.Bool
}

func resolvePeer(h Handle) (*peerConnection, Result) {
	v, ok := registry.Get(h, handle.KindPeerConnection)
	if !ok {
		return nil, ResultInvalidNativeHandle
	}
	return v.(*peerConnection), ResultSuccess
}

// PeerConnectionCreate opens a session and returns its handle through
// out. The first session boots the process-wide runtime. interopHandle
// is an opaque caller-side correlation value carried, not interpreted.
func PeerConnectionCreate(cfg SessionConfig, interopHandle uintptr, out *Handle) Result {
	if out == nil {
		return ResultInvalidParameter
	}
	*out = Null

	boundary.mu.Lock()
	rt, err := runtimeLocked()
	var sess *session.Session
	if err == nil {
		sess, err = session.New(rt, cfg.engineConfig())
	}
	boundary.mu.Unlock()
	if err != nil {
		releaseRuntimeIfIdle()
		return resultFromError(err)
	}

	pc := &peerConnection{
		sess:          sess,
		interopHandle: interopHandle,
		tracks:        make(map[*session.VideoTrack]Handle),
		channels:      make(map[*session.DataChannel]Handle),
		trackSources:  make(map[*session.VideoTrack]Handle),
	}
	pc.hookChannelEvents()
	*out = registry.Put(handle.KindPeerConnection, pc)
	return ResultSuccess
}

// hookChannelEvents occupies the session's channel slots so remote
// announcements materialize handles and wrapper objects before any user
// callback sees them. User registrations for these two events land in pc
// fields instead.
func (pc *peerConnection) hookChannelEvents() {
	pc.sess.SetOnDataChannelAdded(func(dc *session.DataChannel) {
		pc.adoptChannel(dc, true)
	})
	pc.sess.SetOnDataChannelRemoved(func(dc *session.DataChannel) {
		pc.dropChannel(dc)
	})
}

// adoptChannel hands dc a registry handle. For remote announcements it
// also builds the caller-side wrapper and fires the added callback.
func (pc *peerConnection) adoptChannel(dc *session.DataChannel, announce bool) Handle {
	h := registry.Put(handle.KindDataChannel, dc)
	pc.mu.Lock()
	pc.channels[dc] = h
	create := pc.cbs.DataChannelCreate
	added, addedUD := pc.onChAdded, pc.onChAddedUD
	pc.mu.Unlock()

	if announce {
		if dc.InteropHandle() == 0 && create != nil {
			dc.SetInteropHandle(create(pc.interopHandle, dc.ID(), dc.Label()))
		}
		if added != nil {
			added(addedUD, dc.InteropHandle(), h)
		}
	}
	return h
}

func (pc *peerConnection) dropChannel(dc *session.DataChannel) {
	pc.mu.Lock()
	h := pc.channels[dc]
	delete(pc.channels, dc)
	removed, removedUD := pc.onChRemoved, pc.onChRemovedUD
	destroy := pc.cbs.DataChannelDestroy
	pc.mu.Unlock()

	if h != Null {
		registry.Release(h)
	}
	if removed != nil {
		removed(removedUD, dc.InteropHandle(), h)
	}
	if destroy != nil && dc.InteropHandle() != 0 {
		destroy(dc.InteropHandle())
	}
}

// adoptTrack hands t a registry handle. source, when non-null, is the
// external source the track reads from; the track pins it with one
// reference for as long as it stays attached.
func (pc *peerConnection) adoptTrack(t *session.VideoTrack, source Handle) Handle {
	h := registry.Put(handle.KindLocalVideoTrack, t)
	// The caller's reference. The session keeps the one Put created.
	registry.AddRef(h)
	pc.mu.Lock()
	pc.tracks[t] = h
	if source != Null && registry.AddRef(source) {
		pc.trackSources[t] = source
	}
	pc.mu.Unlock()
	return h
}

// releaseTrack drops the session's reference on t's handle and the track's
// reference on its source.
func (pc *peerConnection) releaseTrack(t *session.VideoTrack) {
	pc.mu.Lock()
	h := pc.tracks[t]
	delete(pc.tracks, t)
	src := pc.trackSources[t]
	delete(pc.trackSources, t)
	pc.mu.Unlock()
	if h != Null {
		registry.Release(h)
	}
	if src != Null {
		releaseExternalSource(src)
	}
}

func (pc *peerConnection) close() error {
	if !pc.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := pc.sess.Close()

	pc.mu.Lock()
	tracks := pc.tracks
	channels := pc.channels
	sources := pc.trackSources
	destroy := pc.cbs.DataChannelDestroy
	pc.tracks = make(map[*session.VideoTrack]Handle)
	pc.channels = make(map[*session.DataChannel]Handle)
	pc.trackSources = make(map[*session.VideoTrack]Handle)
	pc.mu.Unlock()

	for _, h := range tracks {
		registry.Release(h)
	}
	for _, h := range sources {
		releaseExternalSource(h)
	}
	for dc, h := range channels {
		registry.Release(h)
		if destroy != nil && dc.InteropHandle() != 0 {
			destroy(dc.InteropHandle())
		}
	}
	return err
}

// PeerConnectionClose tears the session down and nulls the caller's
// handle slot. Passing a null handle is a no-op that reports the invalid
// handle, so double closes are harmless.
func PeerConnectionClose(h *Handle) Result {
	if h == nil {
		return ResultInvalidParameter
	}
	if *h == Null {
		return ResultInvalidNativeHandle
	}
	pc, res := resolvePeer(*h)
	if res != ResultSuccess {
		return res
	}
	err := pc.close()
	registry.Release(*h)
	*h = Null
	releaseRuntimeIfIdle()
	return resultFromError(err)
}

// PeerConnectionRegisterInteropCallbacks installs the wrapper-object
// constructors. Nil clears them.
func PeerConnectionRegisterInteropCallbacks(h Handle, cbs *InteropCallbacks) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	pc.mu.Lock()
	if cbs == nil {
		pc.cbs = InteropCallbacks{}
	} else {
		pc.cbs = *cbs
	}
	pc.mu.Unlock()
	return ResultSuccess
}

// PeerConnectionCreateOffer starts offer creation. The SDP arrives via
// the local-SDP-ready callback.
func PeerConnectionCreateOffer(h Handle) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(pc.sess.CreateOffer())
}

// PeerConnectionCreateAnswer starts answer creation. Fails when no
// remote offer has been applied.
func PeerConnectionCreateAnswer(h Handle) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(pc.sess.CreateAnswer())
}

func PeerConnectionSetRemoteDescription(h Handle, kind SDPType, sdp string) Result {
	if sdp == "" || (kind != SDPTypeOffer && kind != SDPTypeAnswer) {
		return ResultInvalidParameter
	}
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(pc.sess.SetRemoteDescription(engine.SDPType(kind), sdp))
}

func PeerConnectionAddIceCandidate(h Handle, candidate string, mlineIndex int32, mid string) Result {
	if candidate == "" {
		return ResultInvalidParameter
	}
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(pc.sess.AddICECandidate(candidate, mlineIndex, mid))
}

// PeerConnectionSetBitrate adjusts encoder bitrate bounds in bits per
// second. Negative values leave the corresponding bound unset.
func PeerConnectionSetBitrate(h Handle, minBps, startBps, maxBps int32) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(pc.sess.SetBitrate(engine.BitrateSettings{
		MinBps:   minBps,
		StartBps: startBps,
		MaxBps:   maxBps,
	}))
}

// PeerConnectionAddLocalAudioTrack opens the default audio device and
// attaches the session's single audio track.
func PeerConnectionAddLocalAudioTrack(h Handle) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	_, err := pc.sess.AddAudioTrack()
	return resultFromError(err)
}

func PeerConnectionRemoveLocalAudioTrack(h Handle) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(pc.sess.RemoveAudioTrack())
}

func PeerConnectionSetLocalAudioTrackEnabled(h Handle, enabled bool) Result {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(pc.sess.SetAudioEnabled(enabled))
}

// PeerConnectionIsLocalAudioTrackEnabled reports whether the local audio
// track is producing. False when there is no track or the handle is bad.
func PeerConnectionIsLocalAudioTrackEnabled(h Handle) bool {
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return false
	}
	return pc.sess.AudioEnabled()
}
