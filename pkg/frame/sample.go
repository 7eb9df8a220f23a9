package frame

// VideoSample is one opaque encoded video payload unit as produced by a
// capture backend and consumed by an engine sender. The library never
// inspects Data; its format is a contract between the producer and the
// negotiated codec.
type VideoSample struct {
	Data        []byte
	TimestampUs int64
	DurationUs  int64
	Keyframe    bool
}
