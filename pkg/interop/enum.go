package interop

import (
	"sync/atomic"

	"github.com/thesyncim/rtcbridge/internal/handle"
)

// enumerator is the disposable handle behind the asynchronous enumeration
// protocol. Closing it stops further per-item deliveries; the completion
// callback still fires.
type enumerator struct {
	canceled atomic.Bool
}

func (e *enumerator) close() { e.canceled.Store(true) }

// EnumVideoCaptureDevicesAsync enumerates capture devices on the signaling
// queue, invoking enumCb once per device and endCb once afterwards. The
// handle written to out cancels outstanding per-item deliveries when
// closed with CloseEnum.
func EnumVideoCaptureDevicesAsync(enumCb VideoDeviceEnumCallback, enumData uintptr, endCb EnumCompletedCallback, endData uintptr, out *Handle) Result {
	if out == nil {
		return ResultInvalidParameter
	}
	*out = Null
	if enumCb == nil {
		return ResultInvalidParameter
	}
	rt, err := acquireRuntime()
	if err != nil {
		return resultFromError(err)
	}

	en := &enumerator{}
	h := registry.Put(handle.KindEnumerator, en)
	backend := rt.Backend()
	err = rt.Queue().Post(func() {
		defer finishEnum(endCb, endData)
		if backend == nil {
			return
		}
		devices, err := backend.EnumerateVideoDevices()
		if err != nil {
			boundaryLog().Warnf("device enumeration failed: %v", err)
			return
		}
		for _, d := range devices {
			if en.canceled.Load() {
				return
			}
			enumCb(enumData, d.ID, d.Label)
		}
	})
	if err != nil {
		registry.Release(h)
		go releaseRuntimeIfIdle()
		return resultFromError(err)
	}
	*out = h
	return ResultSuccess
}

// EnumVideoCaptureFormatsAsync enumerates the capabilities of one device
// on the signaling queue, invoking enumCb once per format and endCb once
// afterwards.
func EnumVideoCaptureFormatsAsync(deviceID string, enumCb VideoFormatEnumCallback, enumData uintptr, endCb EnumCompletedCallback, endData uintptr, out *Handle) Result {
	if out == nil {
		return ResultInvalidParameter
	}
	*out = Null
	if deviceID == "" || enumCb == nil {
		return ResultInvalidParameter
	}
	rt, err := acquireRuntime()
	if err != nil {
		return resultFromError(err)
	}

	en := &enumerator{}
	h := registry.Put(handle.KindEnumerator, en)
	backend := rt.Backend()
	err = rt.Queue().Post(func() {
		defer finishEnum(endCb, endData)
		if backend == nil {
			return
		}
		formats, err := backend.VideoFormats(deviceID)
		if err != nil {
			boundaryLog().Warnf("format enumeration for %s failed: %v", deviceID, err)
			return
		}
		for _, f := range formats {
			if en.canceled.Load() {
				return
			}
			enumCb(enumData, f.Width, f.Height, f.Framerate, f.FourCC)
		}
	})
	if err != nil {
		registry.Release(h)
		go releaseRuntimeIfIdle()
		return resultFromError(err)
	}
	*out = h
	return ResultSuccess
}

// finishEnum fires the completion callback and lets an otherwise idle
// runtime wind down. Completion fires for canceled enumerations too, so a
// binding can always await it; only per-item deliveries stop. The teardown
// happens off the queue goroutine because closing the runtime joins the
// queue worker.
func finishEnum(endCb EnumCompletedCallback, endData uintptr) {
	if endCb != nil {
		endCb(endData)
	}
	go releaseRuntimeIfIdle()
}

// CloseEnum disposes an enumeration in progress and nulls the caller's
// handle slot so a second close is harmless.
func CloseEnum(h *Handle) Result {
	if h == nil {
		return ResultInvalidParameter
	}
	v, ok := registry.Get(*h, handle.KindEnumerator)
	if !ok {
		return ResultInvalidNativeHandle
	}
	v.(*enumerator).close()
	registry.Release(*h)
	*h = Null
	return ResultSuccess
}
