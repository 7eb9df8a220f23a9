package interop

import (
	"github.com/thesyncim/rtcbridge/internal/handle"
	"github.com/thesyncim/rtcbridge/pkg/stats"
)

// Stats object kind strings accepted by StatsReportGetObjects.
const (
	StatsKindDataChannel   = "DataChannelStats"
	StatsKindAudioSender   = "AudioSenderStats"
	StatsKindAudioReceiver = "AudioReceiverStats"
	StatsKindVideoSender   = "VideoSenderStats"
	StatsKindVideoReceiver = "VideoReceiverStats"
	StatsKindTransport     = "TransportStats"
)

func resolveStatsReport(h Handle) (*stats.Report, Result) {
	v, ok := registry.Get(h, handle.KindStatsReport)
	if !ok {
		return nil, ResultInvalidNativeHandle
	}
	return v.(*stats.Report), ResultSuccess
}

// PeerConnectionGetSimpleStats snapshots the session's statistics and
// delivers them as a report handle through cb, from a goroutine that is
// never the caller's. The handle carries one reference the recipient owns;
// release it with StatsReportRemoveRef exactly once.
func PeerConnectionGetSimpleStats(h Handle, cb StatsReportCallback, userData uintptr) Result {
	if cb == nil {
		return ResultInvalidParameter
	}
	pc, res := resolvePeer(h)
	if res != ResultSuccess {
		return res
	}
	records, err := pc.sess.GetStats()
	if err != nil {
		return resultFromError(err)
	}

	report := registry.Put(handle.KindStatsReport, stats.NewReport(records))
	go func() {
		defer func() {
			if r := recover(); r != nil {
				boundaryLog().Errorf("stats report callback panicked: %v", r)
			}
		}()
		cb(userData, report)
	}()
	return ResultSuccess
}

// StatsReportGetObjects walks the report and emits one flat object of the
// requested kind per logical entity through cb, synchronously. An
// unrecognized kind emits nothing and still succeeds; absence of matching
// records is not an error.
func StatsReportGetObjects(report Handle, kind string, cb StatsObjectCallback, userData uintptr) Result {
	if kind == "" || cb == nil {
		return ResultInvalidParameter
	}
	rep, res := resolveStatsReport(report)
	if res != ResultSuccess {
		return res
	}

	switch kind {
	case StatsKindDataChannel:
		for _, s := range rep.DataChannels() {
			cb(userData, s)
		}
	case StatsKindAudioSender:
		for _, s := range rep.AudioSenders() {
			cb(userData, s)
		}
	case StatsKindAudioReceiver:
		for _, s := range rep.AudioReceivers() {
			cb(userData, s)
		}
	case StatsKindVideoSender:
		for _, s := range rep.VideoSenders() {
			cb(userData, s)
		}
	case StatsKindVideoReceiver:
		for _, s := range rep.VideoReceivers() {
			cb(userData, s)
		}
	case StatsKindTransport:
		for _, s := range rep.Transports() {
			cb(userData, s)
		}
	}
	return ResultSuccess
}

// StatsReportAddRef takes one additional reference on the report handle.
func StatsReportAddRef(h Handle) Result {
	if h.Kind() != handle.KindStatsReport || !registry.AddRef(h) {
		return ResultInvalidNativeHandle
	}
	return ResultSuccess
}

// StatsReportRemoveRef drops one reference. The report's backing store
// lives exactly as long as its reference count.
func StatsReportRemoveRef(h Handle) Result {
	if h.Kind() != handle.KindStatsReport {
		return ResultInvalidNativeHandle
	}
	if _, _, ok := registry.Release(h); !ok {
		return ResultInvalidNativeHandle
	}
	return ResultSuccess
}
