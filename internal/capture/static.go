package capture

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thesyncim/rtcbridge/pkg/frame"
)

// StaticDevice pairs a device with its fixed capability list.
type StaticDevice struct {
	Info    DeviceInfo
	Formats []Format
}

// StaticBackend serves a fixed device table and synthesizes media for every
// opened source. It backs tests and headless deployments where no capture
// shim is available.
type StaticBackend struct {
	mu      sync.Mutex
	devices []StaticDevice
	open    int
	closed  bool
}

// NewStaticBackend builds a backend over the given device table.
func NewStaticBackend(devices ...StaticDevice) *StaticBackend {
	return &StaticBackend{devices: devices}
}

// OpenSources reports the number of sources currently open, for leak checks.
func (b *StaticBackend) OpenSources() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *StaticBackend) EnumerateVideoDevices() ([]DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DeviceInfo, len(b.devices))
	for i, d := range b.devices {
		out[i] = d.Info
	}
	return out, nil
}

func (b *StaticBackend) VideoFormats(deviceID string) ([]Format, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.devices {
		if d.Info.ID == deviceID {
			return append([]Format(nil), d.Formats...), nil
		}
	}
	return nil, ErrNotFound
}

func (b *StaticBackend) OpenVideo(deviceID string, f Format, deliver func(frame.VideoSample)) (VideoSource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	found := false
	for _, d := range b.devices {
		if d.Info.ID == deviceID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNotFound
	}

	fps := f.Framerate
	if fps <= 0 {
		fps = 30
	}
	s := &staticVideoSource{backend: b, stop: make(chan struct{}), done: make(chan struct{})}
	b.open++
	go s.pump(time.Duration(float64(time.Second)/fps), deliver)
	return s, nil
}

func (b *StaticBackend) OpenAudio(cfg AudioConfig, deliver func(*frame.AudioFrame)) (AudioSource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	s := &staticAudioSource{backend: b, stop: make(chan struct{}), done: make(chan struct{})}
	b.open++
	go s.pump(cfg, deliver)
	return s, nil
}

func (b *StaticBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *StaticBackend) sourceClosed() {
	b.mu.Lock()
	b.open--
	b.mu.Unlock()
}

type staticVideoSource struct {
	backend *StaticBackend
	stop    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
}

func (s *staticVideoSource) pump(interval time.Duration, deliver func(frame.VideoSample)) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var n uint64
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			deliver(frame.VideoSample{
				Data:        syntheticPayload(n),
				TimestampUs: time.Now().UnixMicro(),
				DurationUs:  interval.Microseconds(),
				Keyframe:    n%30 == 0,
			})
			n++
		}
	}
}

func (s *staticVideoSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	<-s.done
	s.backend.sourceClosed()
	return nil
}

type staticAudioSource struct {
	backend *StaticBackend
	stop    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
}

func (s *staticAudioSource) pump(cfg AudioConfig, deliver func(*frame.AudioFrame)) {
	defer close(s.done)
	const frameDur = 10 * time.Millisecond
	samples := cfg.SampleRate / 100
	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()
	var phase float64
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			deliver(sineFrame(cfg, samples, &phase))
		}
	}
}

func (s *staticAudioSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	<-s.done
	s.backend.sourceClosed()
	return nil
}

// syntheticPayload produces a recognizable, varying byte pattern.
func syntheticPayload(n uint64) []byte {
	p := make([]byte, 1200)
	for i := range p {
		p[i] = byte(n + uint64(i))
	}
	return p
}

// sineFrame generates one 440 Hz PCM16 frame, continuing phase across calls.
func sineFrame(cfg AudioConfig, samples uint32, phase *float64) *frame.AudioFrame {
	f := frame.NewAudioFrame(cfg.SampleRate, cfg.Channels, samples)
	step := 2 * math.Pi * 440 / float64(cfg.SampleRate)
	for i := uint32(0); i < samples; i++ {
		v := int16(math.Sin(*phase) * 0.3 * math.MaxInt16)
		for ch := uint32(0); ch < cfg.Channels; ch++ {
			f.Data[i*cfg.Channels+ch] = v
		}
		*phase += step
	}
	return f
}
