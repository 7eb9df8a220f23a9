package interop

import (
	"testing"

	"github.com/thesyncim/rtcbridge/internal/capture"
	"github.com/thesyncim/rtcbridge/internal/testutil"
)

func testCamera() capture.StaticDevice {
	return capture.StaticDevice{
		Info: capture.DeviceInfo{ID: "cam0", Label: "Test Camera"},
		Formats: []capture.Format{
			{Width: 320, Height: 240, Framerate: 30},
			{Width: 640, Height: 480, Framerate: 30},
			{Width: 640, Height: 480, Framerate: 60},
		},
	}
}

func TestAddLocalVideoTrackValidation(t *testing.T) {
	setupFake(t, testCamera())
	h := createPeer(t)
	defer closePeer(t, &h)

	if res := PeerConnectionAddLocalVideoTrack(h, "cam", nil, nil); res != ResultInvalidParameter {
		t.Errorf("nil out = %v, want %v", res, ResultInvalidParameter)
	}
	out := Handle(42)
	if res := PeerConnectionAddLocalVideoTrack(h, "", nil, &out); res != ResultInvalidParameter {
		t.Errorf("empty name = %v, want %v", res, ResultInvalidParameter)
	}
	if out != Null {
		t.Errorf("out handle = %#x after failed call, want null", out)
	}
}

func TestAddLocalVideoTrackNoDevicesIsNotFound(t *testing.T) {
	setupFake(t)
	h := createPeer(t)
	defer closePeer(t, &h)

	out := Handle(42)
	if res := PeerConnectionAddLocalVideoTrack(h, "cam", nil, &out); res != ResultNotFound {
		t.Errorf("AddLocalVideoTrack = %v, want %v", res, ResultNotFound)
	}
	if out != Null {
		t.Errorf("out handle = %#x after failed call, want null", out)
	}
}

func TestAddLocalVideoTrackUnknownDeviceIDIsNotFound(t *testing.T) {
	setupFake(t, testCamera())
	h := createPeer(t)
	defer closePeer(t, &h)

	var out Handle
	cfg := &VideoDeviceConfig{DeviceID: "nonexistent"}
	if res := PeerConnectionAddLocalVideoTrack(h, "cam", cfg, &out); res != ResultNotFound {
		t.Errorf("AddLocalVideoTrack = %v, want %v", res, ResultNotFound)
	}
}

func TestVideoTrackHandleCarriesCallerReference(t *testing.T) {
	fake, _ := setupFake(t, testCamera())
	h := createPeer(t)
	defer closePeer(t, &h)

	var track Handle
	cfg := &VideoDeviceConfig{Width: 640, Height: 480, Framerate: 30}
	if res := PeerConnectionAddLocalVideoTrack(h, "cam", cfg, &track); res != ResultSuccess {
		t.Fatalf("AddLocalVideoTrack: %v", res)
	}
	if len(fake.Last().VideoSenders()) != 1 {
		t.Fatalf("video senders = %d, want 1", len(fake.Last().VideoSenders()))
	}

	// One reference for the session, one for the caller.
	if got := registry.Refs(track); got != 2 {
		t.Errorf("track refs = %d, want 2", got)
	}

	// Removing the track drops the session's reference; the caller's
	// keeps the handle alive.
	if res := PeerConnectionRemoveLocalVideoTrack(h, track); res != ResultSuccess {
		t.Fatalf("RemoveLocalVideoTrack: %v", res)
	}
	if got := registry.Refs(track); got != 1 {
		t.Errorf("track refs after removal = %d, want 1", got)
	}
	if !LocalVideoTrackIsEnabled(track) {
		t.Error("removed track handle no longer resolves")
	}

	if res := LocalVideoTrackRemoveRef(track); res != ResultSuccess {
		t.Fatalf("LocalVideoTrackRemoveRef: %v", res)
	}
	if res := LocalVideoTrackSetEnabled(track, true); res != ResultInvalidNativeHandle {
		t.Errorf("SetEnabled on released handle = %v, want %v", res, ResultInvalidNativeHandle)
	}
}

func TestLocalVideoTrackEnableToggle(t *testing.T) {
	setupFake(t, testCamera())
	h := createPeer(t)
	defer closePeer(t, &h)

	var track Handle
	if res := PeerConnectionAddLocalVideoTrack(h, "cam", nil, &track); res != ResultSuccess {
		t.Fatalf("AddLocalVideoTrack: %v", res)
	}
	defer LocalVideoTrackRemoveRef(track)

	if !LocalVideoTrackIsEnabled(track) {
		t.Error("new track not enabled")
	}
	if res := LocalVideoTrackSetEnabled(track, false); res != ResultSuccess {
		t.Fatalf("SetEnabled: %v", res)
	}
	if LocalVideoTrackIsEnabled(track) {
		t.Error("track still enabled after disable")
	}
}

func TestExternalSourcePullAndCompletion(t *testing.T) {
	fake, _ := setupFake(t)
	h := createPeer(t)
	defer closePeer(t, &h)

	type request struct {
		source Handle
		id     uint32
	}
	var requests testutil.Recorder[request]
	var source Handle
	res := ExternalVideoTrackSourceCreateFromI420ACallback(func(ud uintptr, src Handle, requestID uint32, whenMs int64) {
		requests.Record(request{src, requestID})
	}, 0, &source)
	if res != ResultSuccess {
		t.Fatalf("CreateFromI420ACallback: %v", res)
	}
	defer ExternalVideoTrackSourceRemoveRef(source)

	var track Handle
	if res := PeerConnectionAddLocalVideoTrackFromExternalSource(h, "", source, &track); res != ResultSuccess {
		t.Fatalf("AddLocalVideoTrackFromExternalSource: %v", res)
	}
	defer LocalVideoTrackRemoveRef(track)

	// The attached track pins the source.
	if got := registry.Refs(source); got != 2 {
		t.Errorf("source refs = %d, want 2", got)
	}

	got := requests.WaitLen(t, "frame request", 1)
	if got[0].source != source {
		t.Errorf("request source = %#x, want %#x", got[0].source, source)
	}

	f := testutil.GradientI420AFrame(64, 48)
	if res := ExternalVideoTrackSourceCompleteI420AFrameRequest(source, got[0].id, 0, f); res != ResultSuccess {
		t.Fatalf("CompleteI420AFrameRequest: %v", res)
	}
	testutil.WaitFor(t, "frame on sender", func() bool {
		return len(fake.Last().VideoSenders()[0].Frames()) >= 1
	})

	// A request can be answered once.
	if res := ExternalVideoTrackSourceCompleteI420AFrameRequest(source, got[0].id, 0, f); res != ResultNotFound {
		t.Errorf("second completion = %v, want %v", res, ResultNotFound)
	}

	if res := ExternalVideoTrackSourceCompleteArgb32FrameRequest(source, got[0].id, 0, nil); res != ResultInvalidParameter {
		t.Errorf("nil frame completion = %v, want %v", res, ResultInvalidParameter)
	}
}

func TestRemoveVideoTracksFromSourceDropsAllMatches(t *testing.T) {
	setupFake(t)
	h := createPeer(t)
	defer closePeer(t, &h)

	var source Handle
	if res := ExternalVideoTrackSourceCreateFromI420ACallback(func(uintptr, Handle, uint32, int64) {}, 0, &source); res != ResultSuccess {
		t.Fatalf("CreateFromI420ACallback: %v", res)
	}
	defer ExternalVideoTrackSourceRemoveRef(source)

	var t1, t2 Handle
	if res := PeerConnectionAddLocalVideoTrackFromExternalSource(h, "a", source, &t1); res != ResultSuccess {
		t.Fatalf("add a: %v", res)
	}
	if res := PeerConnectionAddLocalVideoTrackFromExternalSource(h, "b", source, &t2); res != ResultSuccess {
		t.Fatalf("add b: %v", res)
	}
	if got := registry.Refs(source); got != 3 {
		t.Errorf("source refs = %d, want 3", got)
	}

	if res := PeerConnectionRemoveLocalVideoTracksFromSource(h, source); res != ResultSuccess {
		t.Fatalf("RemoveLocalVideoTracksFromSource: %v", res)
	}
	if got := registry.Refs(source); got != 1 {
		t.Errorf("source refs after removal = %d, want 1", got)
	}
	// The session's track references dropped; the caller's remain.
	if got := registry.Refs(t1); got != 1 {
		t.Errorf("track a refs = %d, want 1", got)
	}
	LocalVideoTrackRemoveRef(t1)
	LocalVideoTrackRemoveRef(t2)

	// Removing again finds nothing and still succeeds.
	if res := PeerConnectionRemoveLocalVideoTracksFromSource(h, source); res != ResultSuccess {
		t.Errorf("second removal = %v, want success", res)
	}
}

func TestExternalSourceShutdownStopsRequests(t *testing.T) {
	setupFake(t)

	var requests testutil.Recorder[uint32]
	var source Handle
	if res := ExternalVideoTrackSourceCreateFromI420ACallback(func(ud uintptr, src Handle, requestID uint32, whenMs int64) {
		requests.Record(requestID)
	}, 0, &source); res != ResultSuccess {
		t.Fatalf("CreateFromI420ACallback: %v", res)
	}

	requests.WaitLen(t, "first frame request", 1)
	if res := ExternalVideoTrackSourceShutdown(source); res != ResultSuccess {
		t.Fatalf("Shutdown: %v", res)
	}

	// Pending requests were dropped with the shutdown.
	last := requests.Events()[requests.Len()-1]
	f := testutil.GradientI420AFrame(16, 16)
	if res := ExternalVideoTrackSourceCompleteI420AFrameRequest(source, last, 0, f); res != ResultNotFound {
		t.Errorf("completion after shutdown = %v, want %v", res, ResultNotFound)
	}

	if res := ExternalVideoTrackSourceRemoveRef(source); res != ResultSuccess {
		t.Fatalf("RemoveRef: %v", res)
	}
	if res := ExternalVideoTrackSourceShutdown(source); res != ResultInvalidNativeHandle {
		t.Errorf("shutdown on released handle = %v, want %v", res, ResultInvalidNativeHandle)
	}
}
