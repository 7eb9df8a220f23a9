// Package e2e connects two in-process peers through the public boundary
// over the production engine and loopback ICE.
package e2e

import (
	"sync"
	"testing"
	"time"

	"github.com/thesyncim/rtcbridge/internal/testutil"
	"github.com/thesyncim/rtcbridge/pkg/interop"
	"github.com/thesyncim/rtcbridge/pkg/stats"
)

// peerPair wires two boundary sessions back to back: each peer's local
// SDP and candidates feed the other's remote side, the way a signaling
// channel would.
type peerPair struct {
	t               *testing.T
	offerer, answer interop.Handle
}

func newPeerPair(t *testing.T) *peerPair {
	t.Helper()

	pp := &peerPair{t: t}
	cfg := interop.SessionConfig{}
	if res := interop.PeerConnectionCreate(cfg, 0, &pp.offerer); res != interop.ResultSuccess {
		t.Fatalf("create offerer: %v", res)
	}
	if res := interop.PeerConnectionCreate(cfg, 0, &pp.answer); res != interop.ResultSuccess {
		interop.PeerConnectionClose(&pp.offerer)
		t.Fatalf("create answerer: %v", res)
	}
	t.Cleanup(pp.close)

	pp.wire(pp.offerer, pp.answer)
	pp.wire(pp.answer, pp.offerer)
	return pp
}

// wire forwards from's local SDP and ICE candidates to to. Offers
// trigger answer creation on the receiving side.
func (pp *peerPair) wire(from, to interop.Handle) {
	res := interop.PeerConnectionRegisterLocalSdpReadyCallback(from,
		func(_ uintptr, kind interop.SDPType, sdp string) {
			if res := interop.PeerConnectionSetRemoteDescription(to, kind, sdp); res != interop.ResultSuccess {
				pp.t.Errorf("set remote %v: %v", kind, res)
				return
			}
			if kind == interop.SDPTypeOffer {
				if res := interop.PeerConnectionCreateAnswer(to); res != interop.ResultSuccess {
					pp.t.Errorf("create answer: %v", res)
				}
			}
		}, 0)
	if res != interop.ResultSuccess {
		pp.t.Fatalf("register sdp callback: %v", res)
	}
	res = interop.PeerConnectionRegisterIceCandidateReadyCallback(from,
		func(_ uintptr, candidate string, mlineIndex int32, mid string) {
			// Candidates may trail the remote answer or the far
			// side's close; late ones are not a test failure.
			interop.PeerConnectionAddIceCandidate(to, candidate, mlineIndex, mid)
		}, 0)
	if res != interop.ResultSuccess {
		pp.t.Fatalf("register candidate callback: %v", res)
	}
}

// connect drives the offer/answer exchange and waits for both sides to
// reach the connected state.
func (pp *peerPair) connect() {
	pp.t.Helper()

	var mu sync.Mutex
	connected := make(map[interop.Handle]bool)
	for _, h := range []interop.Handle{pp.offerer, pp.answer} {
		h := h
		res := interop.PeerConnectionRegisterConnectedCallback(h, func(uintptr) {
			mu.Lock()
			connected[h] = true
			mu.Unlock()
		}, 0)
		if res != interop.ResultSuccess {
			pp.t.Fatalf("register connected callback: %v", res)
		}
	}

	if res := interop.PeerConnectionCreateOffer(pp.offerer); res != interop.ResultSuccess {
		pp.t.Fatalf("create offer: %v", res)
	}
	testutil.WaitFor(pp.t, "both peers connected", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return connected[pp.offerer] && connected[pp.answer]
	})
}

func (pp *peerPair) close() {
	interop.PeerConnectionClose(&pp.answer)
	interop.PeerConnectionClose(&pp.offerer)
}

func TestLoopbackDataChannelRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("full ICE handshake")
	}

	pp := newPeerPair(t)

	// The answerer materializes the remote channel; callbacks attach
	// inside the added callback so no message slips past them.
	var (
		remoteMu     sync.Mutex
		remote       interop.Handle
		remoteInbox  testutil.Recorder[string]
		remoteStates testutil.Recorder[interop.DataChannelState]
	)
	res := interop.PeerConnectionRegisterDataChannelAddedCallback(pp.answer,
		func(_ uintptr, _ uintptr, ch interop.Handle) {
			cbs := interop.DataChannelCallbacks{
				Message: func(_ uintptr, data []byte) { remoteInbox.Record(string(data)) },
				State: func(_ uintptr, state interop.DataChannelState, _ int32) {
					remoteStates.Record(state)
				},
			}
			if res := interop.DataChannelRegisterCallbacks(ch, cbs); res != interop.ResultSuccess {
				t.Errorf("register remote channel callbacks: %v", res)
			}
			remoteMu.Lock()
			remote = ch
			remoteMu.Unlock()
		}, 0)
	if res != interop.ResultSuccess {
		t.Fatalf("register added callback: %v", res)
	}

	var (
		localInbox  testutil.Recorder[string]
		localStates testutil.Recorder[interop.DataChannelState]
	)
	cbs := interop.DataChannelCallbacks{
		Message: func(_ uintptr, data []byte) { localInbox.Record(string(data)) },
		State: func(_ uintptr, state interop.DataChannelState, _ int32) {
			localStates.Record(state)
		},
	}
	var local interop.Handle
	if res := interop.PeerConnectionAddDataChannel(pp.offerer, -1, "chat", true, true, cbs, 0, &local); res != interop.ResultSuccess {
		t.Fatalf("add data channel: %v", res)
	}
	if got := interop.DataChannelGetLabel(local); got != "chat" {
		t.Fatalf("label = %q, want %q", got, "chat")
	}

	pp.connect()

	testutil.WaitFor(t, "local channel open", func() bool {
		for _, s := range localStates.Events() {
			if s == interop.DataChannelOpen {
				return true
			}
		}
		return false
	})
	testutil.WaitFor(t, "remote channel announced", func() bool {
		remoteMu.Lock()
		defer remoteMu.Unlock()
		return remote != interop.Null
	})

	if res := interop.DataChannelSendMessage(local, []byte("ping")); res != interop.ResultSuccess {
		t.Fatalf("send ping: %v", res)
	}
	got := remoteInbox.WaitLen(t, "remote message", 1)
	if got[0] != "ping" {
		t.Fatalf("remote received %q, want %q", got[0], "ping")
	}

	remoteMu.Lock()
	ch := remote
	remoteMu.Unlock()
	if res := interop.DataChannelSendMessage(ch, []byte("pong")); res != interop.ResultSuccess {
		t.Fatalf("send pong: %v", res)
	}
	back := localInbox.WaitLen(t, "local message", 1)
	if back[0] != "pong" {
		t.Fatalf("local received %q, want %q", back[0], "pong")
	}
}

func TestLoopbackExternalVideoTrackReachesRemote(t *testing.T) {
	if testing.Short() {
		t.Skip("full ICE handshake")
	}

	pp := newPeerPair(t)

	var remoteTracks testutil.Recorder[interop.TrackKind]
	res := interop.PeerConnectionRegisterTrackAddedCallback(pp.answer,
		func(_ uintptr, kind interop.TrackKind) { remoteTracks.Record(kind) }, 0)
	if res != interop.ResultSuccess {
		t.Fatalf("register track added callback: %v", res)
	}

	// Answer every frame request with a synthetic frame so RTP flows as
	// soon as the transport is up.
	img := testutil.GradientI420AFrame(320, 240)
	var source interop.Handle
	res = interop.ExternalVideoTrackSourceCreateFromI420ACallback(
		func(_ uintptr, src interop.Handle, requestID uint32, whenMs int64) {
			interop.ExternalVideoTrackSourceCompleteI420AFrameRequest(src, requestID, whenMs, img)
		}, 0, &source)
	if res != interop.ResultSuccess {
		t.Fatalf("create external source: %v", res)
	}
	defer interop.ExternalVideoTrackSourceRemoveRef(source)

	var track interop.Handle
	if res := interop.PeerConnectionAddLocalVideoTrackFromExternalSource(pp.offerer, "synthetic", source, &track); res != interop.ResultSuccess {
		t.Fatalf("add track from source: %v", res)
	}
	defer interop.LocalVideoTrackRemoveRef(track)

	pp.connect()

	testutil.WaitFor(t, "remote video track", func() bool {
		for _, kind := range remoteTracks.Events() {
			if kind == interop.TrackKindVideo {
				return true
			}
		}
		return false
	})

	testutil.WaitFor(t, "sender stats show encoded frames", func() bool {
		for _, s := range senderStats(t, pp.offerer) {
			if s.TrackIdentifier != "" && s.FramesEncoded > 0 && s.BytesSent > 0 {
				return true
			}
		}
		return false
	})

	if res := interop.PeerConnectionRemoveLocalVideoTrack(pp.offerer, track); res != interop.ResultSuccess {
		t.Fatalf("remove track: %v", res)
	}
}

func TestLoopbackStatsCoverTransportAndChannels(t *testing.T) {
	if testing.Short() {
		t.Skip("full ICE handshake")
	}

	pp := newPeerPair(t)

	var local interop.Handle
	if res := interop.PeerConnectionAddDataChannel(pp.offerer, -1, "probe", true, true, interop.DataChannelCallbacks{}, 0, &local); res != interop.ResultSuccess {
		t.Fatalf("add data channel: %v", res)
	}
	pp.connect()

	report := collectReport(t, pp.offerer)
	defer interop.StatsReportRemoveRef(report)

	var channels int
	res := interop.StatsReportGetObjects(report, interop.StatsKindDataChannel,
		func(_ uintptr, _ any) { channels++ }, 0)
	if res != interop.ResultSuccess {
		t.Fatalf("get data channel stats: %v", res)
	}
	if channels == 0 {
		t.Fatal("no data channel stats after negotiation")
	}

	var transports int
	res = interop.StatsReportGetObjects(report, interop.StatsKindTransport,
		func(_ uintptr, _ any) { transports++ }, 0)
	if res != interop.ResultSuccess {
		t.Fatalf("get transport stats: %v", res)
	}
	if transports == 0 {
		t.Fatal("no transport stats after negotiation")
	}
}

// collectReport waits for the asynchronous report delivery and hands the
// caller its reference.
func collectReport(t *testing.T, h interop.Handle) interop.Handle {
	t.Helper()
	got := make(chan interop.Handle, 1)
	res := interop.PeerConnectionGetSimpleStats(h, func(_ uintptr, report interop.Handle) {
		got <- report
	}, 0)
	if res != interop.ResultSuccess {
		t.Fatalf("get simple stats: %v", res)
	}
	select {
	case report := <-got:
		return report
	case <-time.After(testutil.WaitTimeout):
		t.Fatal("timed out waiting for stats report")
		return interop.Null
	}
}

func senderStats(t *testing.T, h interop.Handle) []stats.VideoSenderStats {
	t.Helper()
	report := collectReport(t, h)
	defer interop.StatsReportRemoveRef(report)

	var out []stats.VideoSenderStats
	res := interop.StatsReportGetObjects(report, interop.StatsKindVideoSender,
		func(_ uintptr, obj any) {
			if s, ok := obj.(stats.VideoSenderStats); ok {
				out = append(out, s)
			}
		}, 0)
	if res != interop.ResultSuccess {
		t.Fatalf("get video sender stats: %v", res)
	}
	return out
}
