// Package capture abstracts the video/audio capture devices local tracks
// are built from. The production backend drives a native capture shim via
// purego; StaticBackend serves fixed device tables with synthetic media for
// tests and headless use. All backend access is expected to happen on the
// signaling queue.
package capture

import (
	"errors"

	"github.com/thesyncim/rtcbridge/pkg/frame"
)

var (
	// ErrNotFound is returned when no device or capability matches.
	ErrNotFound = errors.New("capture: no matching device")

	// ErrShimNotLoaded is returned by the native backend before its shim
	// library has been loaded.
	ErrShimNotLoaded = errors.New("capture: shim library not loaded")

	// ErrClosed is returned when operating on a closed source.
	ErrClosed = errors.New("capture: source closed")
)

// DeviceInfo describes one enumerable video capture device.
type DeviceInfo struct {
	ID    string
	Label string
}

// Format is one capability a device can be opened at.
type Format struct {
	Width     uint32
	Height    uint32
	Framerate float64
	FourCC    uint32
}

// VideoConfig is the caller-side device filter: every field is optional,
// zero means "any".
type VideoConfig struct {
	DeviceID  string
	Width     uint32
	Height    uint32
	Framerate float64
}

// AudioConfig selects the capture format of the audio device.
type AudioConfig struct {
	SampleRate uint32
	Channels   uint32
}

// VideoSource is an open, running video capture. Closing stops delivery and
// releases the device.
type VideoSource interface {
	Close() error
}

// AudioSource is an open, running audio capture.
type AudioSource interface {
	Close() error
}

// Backend is the device layer behind local track creation.
type Backend interface {
	// EnumerateVideoDevices lists devices in backend order.
	EnumerateVideoDevices() ([]DeviceInfo, error)

	// VideoFormats lists the capabilities of one device in backend order.
	VideoFormats(deviceID string) ([]Format, error)

	// OpenVideo starts capturing deviceID at format f. Samples arrive on a
	// backend goroutine until the source is closed.
	OpenVideo(deviceID string, f Format, deliver func(frame.VideoSample)) (VideoSource, error)

	// OpenAudio starts capturing the default audio device. Frames arrive on
	// a backend goroutine until the source is closed.
	OpenAudio(cfg AudioConfig, deliver func(*frame.AudioFrame)) (AudioSource, error)

	// Close releases the backend itself.
	Close() error
}

// fpsEqual compares framerates after rounding to the nearest integer FPS.
func fpsEqual(a, b float64) bool {
	return int(a+0.5) == int(b+0.5)
}

func formatMatches(f Format, cfg VideoConfig) bool {
	if cfg.Width != 0 && f.Width != cfg.Width {
		return false
	}
	if cfg.Height != 0 && f.Height != cfg.Height {
		return false
	}
	if cfg.Framerate != 0 && !fpsEqual(f.Framerate, cfg.Framerate) {
		return false
	}
	return true
}

// ResolveDevice picks the device and capability for cfg.
//
// With a DeviceID, exactly that device is considered: absent device is
// ErrNotFound, otherwise the first of its capabilities passing the optional
// width/height/framerate filters wins. Without a DeviceID every device is
// scanned in enumeration order and the first passing capability wins. A
// config with no filters at all selects the first capability of the first
// device that reports any.
func ResolveDevice(b Backend, cfg VideoConfig) (DeviceInfo, Format, error) {
	devices, err := b.EnumerateVideoDevices()
	if err != nil {
		return DeviceInfo{}, Format{}, err
	}

	if cfg.DeviceID != "" {
		for _, d := range devices {
			if d.ID != cfg.DeviceID {
				continue
			}
			formats, err := b.VideoFormats(d.ID)
			if err != nil {
				return DeviceInfo{}, Format{}, err
			}
			for _, f := range formats {
				if formatMatches(f, cfg) {
					return d, f, nil
				}
			}
			return DeviceInfo{}, Format{}, ErrNotFound
		}
		return DeviceInfo{}, Format{}, ErrNotFound
	}

	for _, d := range devices {
		formats, err := b.VideoFormats(d.ID)
		if err != nil {
			return DeviceInfo{}, Format{}, err
		}
		for _, f := range formats {
			if formatMatches(f, cfg) {
				return d, f, nil
			}
		}
	}
	return DeviceInfo{}, Format{}, ErrNotFound
}
