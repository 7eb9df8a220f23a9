package interop

import (
	"testing"

	"github.com/thesyncim/rtcbridge/internal/capture"
	"github.com/thesyncim/rtcbridge/internal/testutil"
)

func TestEnumVideoCaptureDevicesAsync(t *testing.T) {
	setupFake(t,
		capture.StaticDevice{Info: capture.DeviceInfo{ID: "cam0", Label: "Front"}},
		capture.StaticDevice{Info: capture.DeviceInfo{ID: "cam1", Label: "Back"}},
	)

	var devices testutil.Recorder[string]
	done := make(chan struct{})
	var en Handle
	res := EnumVideoCaptureDevicesAsync(
		func(ud uintptr, id, label string) { devices.Record(id + "/" + label) }, 0,
		func(ud uintptr) { close(done) }, 0,
		&en,
	)
	if res != ResultSuccess {
		t.Fatalf("EnumVideoCaptureDevicesAsync: %v", res)
	}
	if en == Null {
		t.Fatal("enumeration returned a null handle")
	}
	testutil.WaitSignal(t, "enumeration completion", done)

	got := devices.Events()
	want := []string{"cam0/Front", "cam1/Back"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("devices = %v, want %v", got, want)
	}

	if res := CloseEnum(&en); res != ResultSuccess {
		t.Fatalf("CloseEnum: %v", res)
	}
	if en != Null {
		t.Errorf("enum handle = %#x after close, want null", en)
	}
	if res := CloseEnum(&en); res != ResultInvalidNativeHandle {
		t.Errorf("second CloseEnum = %v, want %v", res, ResultInvalidNativeHandle)
	}
}

func TestEnumVideoCaptureFormatsAsync(t *testing.T) {
	setupFake(t, capture.StaticDevice{
		Info: capture.DeviceInfo{ID: "cam0", Label: "Front"},
		Formats: []capture.Format{
			{Width: 640, Height: 480, Framerate: 30},
			{Width: 1280, Height: 720, Framerate: 60},
		},
	})

	type format struct {
		w, h uint32
		fps  float64
	}
	var formats testutil.Recorder[format]
	done := make(chan struct{})
	var en Handle
	res := EnumVideoCaptureFormatsAsync("cam0",
		func(ud uintptr, width, height uint32, framerate float64, fourcc uint32) {
			formats.Record(format{width, height, framerate})
		}, 0,
		func(ud uintptr) { close(done) }, 0,
		&en,
	)
	if res != ResultSuccess {
		t.Fatalf("EnumVideoCaptureFormatsAsync: %v", res)
	}
	testutil.WaitSignal(t, "format enumeration completion", done)
	defer CloseEnum(&en)

	got := formats.Events()
	if len(got) != 2 || got[0] != (format{640, 480, 30}) || got[1] != (format{1280, 720, 60}) {
		t.Errorf("formats = %+v", got)
	}
}

func TestCloseEnumStopsItemsButStillCompletes(t *testing.T) {
	setupFake(t,
		capture.StaticDevice{Info: capture.DeviceInfo{ID: "cam0", Label: "Front"}},
	)

	rt, err := acquireRuntime()
	if err != nil {
		t.Fatalf("acquire runtime: %v", err)
	}
	// Hold the queue so the enumeration task cannot run until after the
	// handle is closed.
	gate := make(chan struct{})
	defer close(gate)
	if err := rt.Queue().Post(func() { <-gate }); err != nil {
		t.Fatalf("post gate task: %v", err)
	}

	items := 0
	done := make(chan struct{})
	var en Handle
	res := EnumVideoCaptureDevicesAsync(
		func(uintptr, string, string) { items++ }, 0,
		func(uintptr) { close(done) }, 0,
		&en,
	)
	if res != ResultSuccess {
		t.Fatalf("EnumVideoCaptureDevicesAsync: %v", res)
	}
	if res := CloseEnum(&en); res != ResultSuccess {
		t.Fatalf("CloseEnum: %v", res)
	}

	gate <- struct{}{}
	testutil.WaitSignal(t, "completion after close", done)
	if items != 0 {
		t.Errorf("per-item callback fired %d times after close", items)
	}
}

func TestEnumFormatsUnknownDeviceCompletesEmpty(t *testing.T) {
	setupFake(t)

	fired := 0
	done := make(chan struct{})
	var en Handle
	res := EnumVideoCaptureFormatsAsync("nonexistent",
		func(ud uintptr, width, height uint32, framerate float64, fourcc uint32) { fired++ }, 0,
		func(ud uintptr) { close(done) }, 0,
		&en,
	)
	if res != ResultSuccess {
		t.Fatalf("EnumVideoCaptureFormatsAsync: %v", res)
	}
	testutil.WaitSignal(t, "completion", done)
	defer CloseEnum(&en)

	if fired != 0 {
		t.Errorf("per-item callback fired %d times for unknown device", fired)
	}
}

func TestEnumValidation(t *testing.T) {
	setupFake(t)

	var en Handle
	if res := EnumVideoCaptureDevicesAsync(nil, 0, nil, 0, &en); res != ResultInvalidParameter {
		t.Errorf("nil enum callback = %v, want %v", res, ResultInvalidParameter)
	}
	if res := EnumVideoCaptureDevicesAsync(func(uintptr, string, string) {}, 0, nil, 0, nil); res != ResultInvalidParameter {
		t.Errorf("nil out = %v, want %v", res, ResultInvalidParameter)
	}
	if res := EnumVideoCaptureFormatsAsync("", func(uintptr, uint32, uint32, float64, uint32) {}, 0, nil, 0, &en); res != ResultInvalidParameter {
		t.Errorf("empty device id = %v, want %v", res, ResultInvalidParameter)
	}
	if res := CloseEnum(nil); res != ResultInvalidParameter {
		t.Errorf("CloseEnum(nil) = %v, want %v", res, ResultInvalidParameter)
	}
}
