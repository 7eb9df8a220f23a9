package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pion/logging"

	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// Shim result codes (int32 to match C int).
const (
	shimOK              int32 = 0
	shimErrInvalidParam int32 = -1
	shimErrInitFailed   int32 = -2
	shimErrNotFound     int32 = -9
)

func shimError(code int32) error {
	switch code {
	case shimOK:
		return nil
	case shimErrInvalidParam:
		return fmt.Errorf("capture: shim rejected parameters")
	case shimErrNotFound:
		return ErrNotFound
	case shimErrInitFailed:
		return fmt.Errorf("capture: shim initialization failed")
	default:
		return fmt.Errorf("capture: unknown shim error %d", code)
	}
}

// shimDeviceInfo matches RtcBridgeDeviceInfo in the shim header.
type shimDeviceInfo struct {
	deviceID [256]byte
	label    [256]byte
}

// shimVideoFormat matches RtcBridgeVideoFormat in the shim header.
type shimVideoFormat struct {
	width     uint32
	height    uint32
	fourCC    uint32
	_         uint32
	framerate float64
}

// Shim function pointers, bound by NewNativeBackend.
var (
	shimEnumerateDevices func(out uintptr, max int32, outCount uintptr) int32
	shimEnumerateFormats func(deviceID uintptr, out uintptr, max int32, outCount uintptr) int32

	shimVideoCreate  func(deviceID uintptr, width, height uint32, framerate float64) uintptr
	shimVideoStart   func(ptr uintptr, callback uintptr, ctx uintptr) int32
	shimVideoStop    func(ptr uintptr)
	shimVideoDestroy func(ptr uintptr)

	shimAudioCreate  func(sampleRate, channels uint32) uintptr
	shimAudioStart   func(ptr uintptr, callback uintptr, ctx uintptr) int32
	shimAudioStop    func(ptr uintptr)
	shimAudioDestroy func(ptr uintptr)
)

// Callback bridges can't capture closures, so sources are looked up by the
// shim handle passed back as ctx.
var (
	nativeVideoSources = make(map[uintptr]*nativeVideoSource)
	nativeAudioSources = make(map[uintptr]*nativeAudioSource)
	nativeSourceMu     sync.RWMutex

	videoCBOnce sync.Once
	videoCBPtr  uintptr
	audioCBOnce sync.Once
	audioCBPtr  uintptr
)

// NativeBackend drives the capture shim library. The shim owns the platform
// capture APIs and hands back encoded video samples and PCM16 audio.
type NativeBackend struct {
	log    logging.LeveledLogger
	mu     sync.Mutex
	handle uintptr
	loaded atomic.Bool
}

// NewNativeBackend locates, loads and binds the capture shim. The search
// order is the RTCBRIDGE_CAPTURE_SHIM environment variable, lib/{os}_{arch}
// next to the executable, the same path under the working directory, then
// the bare library name for the system loader to resolve.
func NewNativeBackend(lf logging.LoggerFactory) (*NativeBackend, error) {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	b := &NativeBackend{log: lf.NewLogger("capture")}

	path := findShimLibrary()
	handle, err := dlopenLibrary(path, dlFlagsDefault)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShimNotLoaded, err)
	}
	if err := bindShimFunctions(handle); err != nil {
		_ = dlcloseLibrary(handle)
		return nil, err
	}
	b.handle = handle
	b.loaded.Store(true)
	b.log.Infof("capture shim loaded from %s", path)
	return b, nil
}

func shimLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "librtcbridge_capture.dylib"
	case "windows":
		return "rtcbridge_capture.dll"
	default:
		return "librtcbridge_capture.so"
	}
}

func findShimLibrary() string {
	if path := os.Getenv("RTCBRIDGE_CAPTURE_SHIM"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	libName := shimLibraryName()
	platformDir := fmt.Sprintf("%s_%s", runtime.GOOS, runtime.GOARCH)

	var searchPaths []string
	if execPath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(execPath), "lib", platformDir, libName))
	}
	if wd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(wd, "lib", platformDir, libName))
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			abs, _ := filepath.Abs(p)
			return abs
		}
	}
	// Let the system loader try its own paths.
	return libName
}

func bindShimFunctions(handle uintptr) error {
	bind := func(fptr any, name string) error {
		addr, err := dlsymLibrary(handle, name)
		if err != nil {
			return fmt.Errorf("capture: shim is missing %s: %w", name, err)
		}
		purego.RegisterFunc(fptr, addr)
		return nil
	}

	for _, f := range []struct {
		ptr  any
		name string
	}{
		{&shimEnumerateDevices, "rtcbridge_enumerate_video_devices"},
		{&shimEnumerateFormats, "rtcbridge_enumerate_video_formats"},
		{&shimVideoCreate, "rtcbridge_video_capture_create"},
		{&shimVideoStart, "rtcbridge_video_capture_start"},
		{&shimVideoStop, "rtcbridge_video_capture_stop"},
		{&shimVideoDestroy, "rtcbridge_video_capture_destroy"},
		{&shimAudioCreate, "rtcbridge_audio_capture_create"},
		{&shimAudioStart, "rtcbridge_audio_capture_start"},
		{&shimAudioStop, "rtcbridge_audio_capture_stop"},
		{&shimAudioDestroy, "rtcbridge_audio_capture_destroy"},
	} {
		if err := bind(f.ptr, f.name); err != nil {
			return err
		}
	}
	return nil
}

// cstring returns s as a null-terminated byte slice for the shim. The slice
// must be kept alive across the call (runtime.KeepAlive).
func cstring(s string) []byte {
	return append([]byte(s), 0)
}

func cstringToGo(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (b *NativeBackend) EnumerateVideoDevices() ([]DeviceInfo, error) {
	if !b.loaded.Load() {
		return nil, ErrShimNotLoaded
	}

	const maxDevices = 64
	raw := make([]shimDeviceInfo, maxDevices)
	var count int32
	res := shimEnumerateDevices(uintptr(unsafe.Pointer(&raw[0])), maxDevices, uintptr(unsafe.Pointer(&count)))
	if err := shimError(res); err != nil {
		return nil, err
	}

	out := make([]DeviceInfo, count)
	for i := int32(0); i < count; i++ {
		out[i] = DeviceInfo{
			ID:    cstringToGo(raw[i].deviceID[:]),
			Label: cstringToGo(raw[i].label[:]),
		}
	}
	return out, nil
}

func (b *NativeBackend) VideoFormats(deviceID string) ([]Format, error) {
	if !b.loaded.Load() {
		return nil, ErrShimNotLoaded
	}

	id := cstring(deviceID)
	const maxFormats = 128
	raw := make([]shimVideoFormat, maxFormats)
	var count int32
	res := shimEnumerateFormats(
		uintptr(unsafe.Pointer(&id[0])),
		uintptr(unsafe.Pointer(&raw[0])),
		maxFormats,
		uintptr(unsafe.Pointer(&count)),
	)
	runtime.KeepAlive(id)
	if err := shimError(res); err != nil {
		return nil, err
	}

	out := make([]Format, count)
	for i := int32(0); i < count; i++ {
		out[i] = Format{
			Width:     raw[i].width,
			Height:    raw[i].height,
			Framerate: raw[i].framerate,
			FourCC:    raw[i].fourCC,
		}
	}
	return out, nil
}

type nativeVideoSource struct {
	backend *NativeBackend
	ptr     uintptr
	deliver func(frame.VideoSample)
	closed  atomic.Bool
}

// videoSampleBridge is the C-callable trampoline for encoded video samples.
func videoSampleBridge(ctx, data uintptr, size int32, timestampUs int64, keyframe int32) {
	nativeSourceMu.RLock()
	src, ok := nativeVideoSources[ctx]
	nativeSourceMu.RUnlock()
	if !ok || src.deliver == nil {
		return
	}

	const maxSampleSize = 16 * 1024 * 1024
	if data == 0 || size <= 0 || size > maxSampleSize {
		return
	}

	// Copy out of shim-owned memory before returning.
	payload := make([]byte, size)
	copy(payload, unsafe.Slice((*byte)(unsafe.Pointer(data)), size))

	src.backend.safeDeliver(func() {
		src.deliver(frame.VideoSample{
			Data:        payload,
			TimestampUs: timestampUs,
			Keyframe:    keyframe != 0,
		})
	})
}

func (b *NativeBackend) OpenVideo(deviceID string, f Format, deliver func(frame.VideoSample)) (VideoSource, error) {
	if !b.loaded.Load() {
		return nil, ErrShimNotLoaded
	}

	var idPtr uintptr
	var id []byte
	if deviceID != "" {
		id = cstring(deviceID)
		idPtr = uintptr(unsafe.Pointer(&id[0]))
	}
	ptr := shimVideoCreate(idPtr, f.Width, f.Height, f.Framerate)
	runtime.KeepAlive(id)
	if ptr == 0 {
		return nil, fmt.Errorf("capture: video capture create failed for %q", deviceID)
	}

	src := &nativeVideoSource{backend: b, ptr: ptr, deliver: deliver}
	nativeSourceMu.Lock()
	nativeVideoSources[ptr] = src
	nativeSourceMu.Unlock()

	videoCBOnce.Do(func() { videoCBPtr = purego.NewCallback(videoSampleBridge) })
	if err := shimError(shimVideoStart(ptr, videoCBPtr, ptr)); err != nil {
		nativeSourceMu.Lock()
		delete(nativeVideoSources, ptr)
		nativeSourceMu.Unlock()
		shimVideoDestroy(ptr)
		return nil, err
	}
	return src, nil
}

func (s *nativeVideoSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	shimVideoStop(s.ptr)
	nativeSourceMu.Lock()
	delete(nativeVideoSources, s.ptr)
	nativeSourceMu.Unlock()
	shimVideoDestroy(s.ptr)
	return nil
}

type nativeAudioSource struct {
	backend *NativeBackend
	ptr     uintptr
	deliver func(*frame.AudioFrame)
	closed  atomic.Bool
}

// audioFrameBridge is the C-callable trampoline for PCM16 audio frames.
func audioFrameBridge(ctx, samples uintptr, sampleCount, channels, sampleRate int32, timestampUs int64) {
	nativeSourceMu.RLock()
	src, ok := nativeAudioSources[ctx]
	nativeSourceMu.RUnlock()
	if !ok || src.deliver == nil {
		return
	}

	if samples == 0 || sampleCount <= 0 || sampleCount > 48000 || channels <= 0 || channels > 8 {
		return
	}

	total := int(sampleCount) * int(channels)
	data := make([]int16, total)
	copy(data, unsafe.Slice((*int16)(unsafe.Pointer(samples)), total))

	src.backend.safeDeliver(func() {
		src.deliver(&frame.AudioFrame{
			BitsPerSample: 16,
			SampleRate:    uint32(sampleRate),
			ChannelCount:  uint32(channels),
			SampleCount:   uint32(sampleCount),
			Data:          data,
		})
	})
}

func (b *NativeBackend) OpenAudio(cfg AudioConfig, deliver func(*frame.AudioFrame)) (AudioSource, error) {
	if !b.loaded.Load() {
		return nil, ErrShimNotLoaded
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}

	ptr := shimAudioCreate(cfg.SampleRate, cfg.Channels)
	if ptr == 0 {
		return nil, fmt.Errorf("capture: audio capture create failed")
	}

	src := &nativeAudioSource{backend: b, ptr: ptr, deliver: deliver}
	nativeSourceMu.Lock()
	nativeAudioSources[ptr] = src
	nativeSourceMu.Unlock()

	audioCBOnce.Do(func() { audioCBPtr = purego.NewCallback(audioFrameBridge) })
	if err := shimError(shimAudioStart(ptr, audioCBPtr, ptr)); err != nil {
		nativeSourceMu.Lock()
		delete(nativeAudioSources, ptr)
		nativeSourceMu.Unlock()
		shimAudioDestroy(ptr)
		return nil, err
	}
	return src, nil
}

func (s *nativeAudioSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	shimAudioStop(s.ptr)
	nativeSourceMu.Lock()
	delete(nativeAudioSources, s.ptr)
	nativeSourceMu.Unlock()
	shimAudioDestroy(s.ptr)
	return nil
}

// safeDeliver keeps shim callback threads alive through misbehaving
// consumers.
func (b *NativeBackend) safeDeliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("capture callback panic: %v", r)
		}
	}()
	fn()
}

func (b *NativeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded.Load() {
		return nil
	}
	b.loaded.Store(false)
	err := dlcloseLibrary(b.handle)
	b.handle = 0
	return err
}
