package frame

import "time"

// AudioFrame is a block of interleaved PCM16 samples as delivered by the
// audio callbacks.
type AudioFrame struct {
	// BitsPerSample is always 16 for frames produced by this library; the
	// field exists because the boundary struct carries it.
	BitsPerSample uint32

	// SampleRate in Hz.
	SampleRate uint32

	// ChannelCount is the number of interleaved channels.
	ChannelCount uint32

	// SampleCount is the number of samples per channel.
	SampleCount uint32

	// Data holds SampleCount*ChannelCount interleaved samples.
	Data []int16
}

// NewAudioFrame allocates a zeroed PCM16 frame.
func NewAudioFrame(sampleRate, channels, samples uint32) *AudioFrame {
	return &AudioFrame{
		BitsPerSample: 16,
		SampleRate:    sampleRate,
		ChannelCount:  channels,
		SampleCount:   samples,
		Data:          make([]int16, samples*channels),
	}
}

// Duration returns the playout duration of the frame.
func (f *AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.SampleCount) * time.Second / time.Duration(f.SampleRate)
}

// Clone deep-copies the frame.
func (f *AudioFrame) Clone() *AudioFrame {
	c := *f
	c.Data = make([]int16, len(f.Data))
	copy(c.Data, f.Data)
	return &c
}
