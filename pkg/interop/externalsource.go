package interop

import (
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/thesyncim/rtcbridge/internal/handle"
	"github.com/thesyncim/rtcbridge/internal/session"
	"github.com/thesyncim/rtcbridge/pkg/frame"
)

func resolveExternalSource(h Handle) (*session.ExternalVideoSource, Result) {
	v, ok := registry.Get(h, handle.KindExternalVideoSource)
	if !ok {
		return nil, ResultInvalidNativeHandle
	}
	return v.(*session.ExternalVideoSource), ResultSuccess
}

// releaseExternalSource drops one reference and shuts the pump down on the
// final release.
func releaseExternalSource(h Handle) Result {
	val, last, ok := registry.Release(h)
	if !ok {
		return ResultInvalidNativeHandle
	}
	if last {
		val.(*session.ExternalVideoSource).Shutdown()
	}
	return ResultSuccess
}

func sourceLoggerFactory() logging.LoggerFactory {
	boundary.mu.Lock()
	lf := boundary.cfg.LoggerFactory
	boundary.mu.Unlock()
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return lf
}

// newExternalSource starts the request pump and registers the source. The
// pump learns its own handle through an atomic because the handle does not
// exist until the source does; ticks racing the registration are skipped.
func newExternalSource(format session.SourceFormat, request func(source Handle, requestID uint32, whenMs int64), out *Handle) Result {
	var hv atomic.Uint64
	src := session.NewExternalVideoSource(sourceLoggerFactory(), format, 0, func(requestID uint32, whenMs int64) {
		h := Handle(hv.Load())
		if h == Null {
			return
		}
		request(h, requestID, whenMs)
	})
	h := registry.Put(handle.KindExternalVideoSource, src)
	hv.Store(uint64(h))
	*out = h
	return ResultSuccess
}

// ExternalVideoTrackSourceCreateFromI420ACallback starts a pull-model
// video source: the request callback fires once per frame interval with a
// request id and a deadline, and the caller answers each request with
// ExternalVideoTrackSourceCompleteI420AFrameRequest. The handle written to
// out carries one reference; release it with
// ExternalVideoTrackSourceRemoveRef.
func ExternalVideoTrackSourceCreateFromI420ACallback(cb I420AFrameRequestCallback, userData uintptr, out *Handle) Result {
	if out == nil {
		return ResultInvalidParameter
	}
	*out = Null
	if cb == nil {
		return ResultInvalidParameter
	}
	return newExternalSource(session.SourceI420A, func(source Handle, requestID uint32, whenMs int64) {
		cb(userData, source, requestID, whenMs)
	}, out)
}

// ExternalVideoTrackSourceCreateFromArgb32Callback is the 32-bit variant
// of ExternalVideoTrackSourceCreateFromI420ACallback; completed frames are
// converted to I420 before fan-out.
func ExternalVideoTrackSourceCreateFromArgb32Callback(cb ARGBFrameRequestCallback, userData uintptr, out *Handle) Result {
	if out == nil {
		return ResultInvalidParameter
	}
	*out = Null
	if cb == nil {
		return ResultInvalidParameter
	}
	return newExternalSource(session.SourceARGB, func(source Handle, requestID uint32, whenMs int64) {
		cb(userData, source, requestID, whenMs)
	}, out)
}

// ExternalVideoTrackSourceCompleteI420AFrameRequest answers one pending
// frame request with an I420A frame. Answering a request that was never
// issued, already answered, or aged out reports not-found.
func ExternalVideoTrackSourceCompleteI420AFrameRequest(source Handle, requestID uint32, timestampMs int64, f *frame.I420AVideoFrame) Result {
	if f == nil {
		return ResultInvalidParameter
	}
	src, res := resolveExternalSource(source)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(src.CompleteI420AFrame(requestID, timestampMs, f))
}

// ExternalVideoTrackSourceCompleteArgb32FrameRequest answers one pending
// frame request with an ARGB32 frame.
func ExternalVideoTrackSourceCompleteArgb32FrameRequest(source Handle, requestID uint32, timestampMs int64, f *frame.ARGBVideoFrame) Result {
	if f == nil {
		return ResultInvalidParameter
	}
	src, res := resolveExternalSource(source)
	if res != ResultSuccess {
		return res
	}
	return resultFromError(src.CompleteARGBFrame(requestID, timestampMs, f))
}

// ExternalVideoTrackSourceShutdown stops the request pump and drops
// pending requests. Tracks fed by the source stay attached; they just stop
// receiving frames.
func ExternalVideoTrackSourceShutdown(source Handle) Result {
	src, res := resolveExternalSource(source)
	if res != ResultSuccess {
		return res
	}
	src.Shutdown()
	return ResultSuccess
}

// ExternalVideoTrackSourceAddRef takes one additional reference on the
// source handle.
func ExternalVideoTrackSourceAddRef(h Handle) Result {
	if h.Kind() != handle.KindExternalVideoSource || !registry.AddRef(h) {
		return ResultInvalidNativeHandle
	}
	return ResultSuccess
}

// ExternalVideoTrackSourceRemoveRef drops one reference; the final release
// shuts the source down.
func ExternalVideoTrackSourceRemoveRef(h Handle) Result {
	if h.Kind() != handle.KindExternalVideoSource {
		return ResultInvalidNativeHandle
	}
	return releaseExternalSource(h)
}
