// Package stats models point-in-time statistics snapshots: heterogeneous
// low-level records collected from the peer-connection engine, and the flat
// per-entity views assembled from them on demand.
package stats

// MediaKind tags a record as belonging to an audio or a video entity.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Record is one low-level measurement inside a report. The concrete types
// below are the only implementations.
type Record interface {
	isRecord()
}

// OutboundRTPRecord measures one outgoing RTP stream. TrackID is empty when
// the sending track was removed before the snapshot was taken.
type OutboundRTPRecord struct {
	TimestampUs   int64
	TrackID       string
	Kind          MediaKind
	PacketsSent   uint64
	BytesSent     uint64
	FramesEncoded uint32
}

// InboundRTPRecord measures one incoming RTP stream.
type InboundRTPRecord struct {
	TimestampUs     int64
	TrackID         string
	Kind            MediaKind
	PacketsReceived uint64
	BytesReceived   uint64
	FramesDecoded   uint32
}

// TrackRecord measures one media-stream track. RemoteSource distinguishes
// receive-side tracks from locally produced ones.
type TrackRecord struct {
	TimestampUs     int64
	TrackIdentifier string
	Kind            MediaKind
	RemoteSource    bool

	// Audio fields.
	AudioLevel           float64
	TotalAudioEnergy     float64
	TotalSamplesDuration float64

	// Video fields.
	FramesSent     uint32
	HugeFramesSent uint32
	FramesReceived uint32
	FramesDropped  uint32
}

// DataChannelRecord measures one data channel.
type DataChannelRecord struct {
	TimestampUs      int64
	DataChannelID    int64
	MessagesSent     uint64
	BytesSent        uint64
	MessagesReceived uint64
	BytesReceived    uint64
}

// TransportRecord measures the peer-connection transport.
type TransportRecord struct {
	TimestampUs   int64
	BytesSent     uint64
	BytesReceived uint64
}

func (OutboundRTPRecord) isRecord() {}
func (InboundRTPRecord) isRecord()  {}
func (TrackRecord) isRecord()       {}
func (DataChannelRecord) isRecord() {}
func (TransportRecord) isRecord()   {}
