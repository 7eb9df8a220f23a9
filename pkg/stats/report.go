package stats

import (
	"time"

	"github.com/google/uuid"
)

// Report is an immutable snapshot of low-level records from one stats
// collection pass. Reports are safe to share across goroutines; lifetime
// across the interop boundary is managed by the handle registry's reference
// count, not by the report itself.
type Report struct {
	id          string
	timestampUs int64
	records     []Record
}

// NewReport snapshots records into an immutable report. The input slice is
// copied.
func NewReport(records []Record) *Report {
	return &Report{
		id:          uuid.NewString(),
		timestampUs: time.Now().UnixMicro(),
		records:     append([]Record(nil), records...),
	}
}

// ID is the unique identifier of this snapshot.
func (r *Report) ID() string { return r.id }

// TimestampUs is when the snapshot was assembled, in µs since the unix epoch.
func (r *Report) TimestampUs() int64 { return r.timestampUs }

// Records returns the raw low-level records in collection order. Callers
// must not mutate the returned slice.
func (r *Report) Records() []Record { return r.records }

// DataChannelStats is the flat per-channel view.
type DataChannelStats struct {
	TimestampUs      int64
	DataChannelID    int64
	MessagesSent     uint64
	BytesSent        uint64
	MessagesReceived uint64
	BytesReceived    uint64
}

// AudioSenderStats joins one outbound audio RTP record with the matching
// local track record.
type AudioSenderStats struct {
	TrackStatsTimestampUs int64
	TrackIdentifier       string
	AudioLevel            float64
	TotalAudioEnergy      float64
	TotalSamplesDuration  float64

	RTPStatsTimestampUs int64
	PacketsSent         uint64
	BytesSent           uint64
}

// AudioReceiverStats joins one inbound audio RTP record with the matching
// remote track record.
type AudioReceiverStats struct {
	TrackStatsTimestampUs int64
	TrackIdentifier       string
	AudioLevel            float64
	TotalAudioEnergy      float64
	TotalSamplesDuration  float64

	RTPStatsTimestampUs int64
	PacketsReceived     uint64
	BytesReceived       uint64
}

// VideoSenderStats joins one outbound video RTP record with the matching
// local track record.
type VideoSenderStats struct {
	TrackStatsTimestampUs int64
	TrackIdentifier       string
	FramesSent            uint32
	HugeFramesSent        uint32

	RTPStatsTimestampUs int64
	PacketsSent         uint64
	BytesSent           uint64
	FramesEncoded       uint32
}

// VideoReceiverStats joins one inbound video RTP record with the matching
// remote track record.
type VideoReceiverStats struct {
	TrackStatsTimestampUs int64
	TrackIdentifier       string
	FramesReceived        uint32
	FramesDropped         uint32

	RTPStatsTimestampUs int64
	PacketsReceived     uint64
	BytesReceived       uint64
	FramesDecoded       uint32
}

// TransportStats is the flat transport view.
type TransportStats struct {
	TimestampUs   int64
	BytesSent     uint64
	BytesReceived uint64
}

// DataChannels maps each data-channel record one-to-one, in record order.
func (r *Report) DataChannels() []DataChannelStats {
	var out []DataChannelStats
	for _, rec := range r.records {
		if v, ok := rec.(DataChannelRecord); ok {
			out = append(out, DataChannelStats{
				TimestampUs:      v.TimestampUs,
				DataChannelID:    v.DataChannelID,
				MessagesSent:     v.MessagesSent,
				BytesSent:        v.BytesSent,
				MessagesReceived: v.MessagesReceived,
				BytesReceived:    v.BytesReceived,
			})
		}
	}
	return out
}

// Transports maps each transport record one-to-one, in record order.
func (r *Report) Transports() []TransportStats {
	var out []TransportStats
	for _, rec := range r.records {
		if v, ok := rec.(TransportRecord); ok {
			out = append(out, TransportStats{
				TimestampUs:   v.TimestampUs,
				BytesSent:     v.BytesSent,
				BytesReceived: v.BytesReceived,
			})
		}
	}
	return out
}

// ordered is a first-seen-wins join table: the first record mentioning a
// track identifier creates its slot, later records of the other kind fill
// the remaining fields in place. Emission order is insertion order.
type ordered[T any] struct {
	idx  map[string]int
	rows []T
}

func newOrdered[T any]() *ordered[T] {
	return &ordered[T]{idx: make(map[string]int)}
}

// slot returns the row for trackID, creating it on first sight via init.
// The pointer is only valid until the next slot call.
func (o *ordered[T]) slot(trackID string, init func(*T)) *T {
	if i, ok := o.idx[trackID]; ok {
		return &o.rows[i]
	}
	o.idx[trackID] = len(o.rows)
	var row T
	init(&row)
	o.rows = append(o.rows, row)
	return &o.rows[len(o.rows)-1]
}

// AudioSenders joins outbound audio RTP records with non-remote audio track
// records on the track identifier. RTP records without a track identifier
// are skipped; they belong to tracks removed before the snapshot.
func (r *Report) AudioSenders() []AudioSenderStats {
	join := newOrdered[AudioSenderStats]()
	for _, rec := range r.records {
		switch v := rec.(type) {
		case OutboundRTPRecord:
			if v.Kind != KindAudio || v.TrackID == "" {
				continue
			}
			s := join.slot(v.TrackID, func(s *AudioSenderStats) { s.TrackIdentifier = v.TrackID })
			s.RTPStatsTimestampUs = v.TimestampUs
			s.PacketsSent = v.PacketsSent
			s.BytesSent = v.BytesSent
		case TrackRecord:
			if v.Kind != KindAudio || v.RemoteSource {
				continue
			}
			s := join.slot(v.TrackIdentifier, func(s *AudioSenderStats) { s.TrackIdentifier = v.TrackIdentifier })
			s.TrackStatsTimestampUs = v.TimestampUs
			s.AudioLevel = v.AudioLevel
			s.TotalAudioEnergy = v.TotalAudioEnergy
			s.TotalSamplesDuration = v.TotalSamplesDuration
		}
	}
	return join.rows
}

// AudioReceivers joins inbound audio RTP records with remote audio track
// records on the track identifier.
func (r *Report) AudioReceivers() []AudioReceiverStats {
	join := newOrdered[AudioReceiverStats]()
	for _, rec := range r.records {
		switch v := rec.(type) {
		case InboundRTPRecord:
			if v.Kind != KindAudio || v.TrackID == "" {
				continue
			}
			s := join.slot(v.TrackID, func(s *AudioReceiverStats) { s.TrackIdentifier = v.TrackID })
			s.RTPStatsTimestampUs = v.TimestampUs
			s.PacketsReceived = v.PacketsReceived
			s.BytesReceived = v.BytesReceived
		case TrackRecord:
			if v.Kind != KindAudio || !v.RemoteSource {
				continue
			}
			s := join.slot(v.TrackIdentifier, func(s *AudioReceiverStats) { s.TrackIdentifier = v.TrackIdentifier })
			s.TrackStatsTimestampUs = v.TimestampUs
			s.AudioLevel = v.AudioLevel
			s.TotalAudioEnergy = v.TotalAudioEnergy
			s.TotalSamplesDuration = v.TotalSamplesDuration
		}
	}
	return join.rows
}

// VideoSenders joins outbound video RTP records with non-remote video track
// records on the track identifier.
func (r *Report) VideoSenders() []VideoSenderStats {
	join := newOrdered[VideoSenderStats]()
	for _, rec := range r.records {
		switch v := rec.(type) {
		case OutboundRTPRecord:
			if v.Kind != KindVideo || v.TrackID == "" {
				continue
			}
			s := join.slot(v.TrackID, func(s *VideoSenderStats) { s.TrackIdentifier = v.TrackID })
			s.RTPStatsTimestampUs = v.TimestampUs
			s.PacketsSent = v.PacketsSent
			s.BytesSent = v.BytesSent
			s.FramesEncoded = v.FramesEncoded
		case TrackRecord:
			if v.Kind != KindVideo || v.RemoteSource {
				continue
			}
			s := join.slot(v.TrackIdentifier, func(s *VideoSenderStats) { s.TrackIdentifier = v.TrackIdentifier })
			s.TrackStatsTimestampUs = v.TimestampUs
			s.FramesSent = v.FramesSent
			s.HugeFramesSent = v.HugeFramesSent
		}
	}
	return join.rows
}

// VideoReceivers joins inbound video RTP records with remote video track
// records on the track identifier.
func (r *Report) VideoReceivers() []VideoReceiverStats {
	join := newOrdered[VideoReceiverStats]()
	for _, rec := range r.records {
		switch v := rec.(type) {
		case InboundRTPRecord:
			if v.Kind != KindVideo || v.TrackID == "" {
				continue
			}
			s := join.slot(v.TrackID, func(s *VideoReceiverStats) { s.TrackIdentifier = v.TrackID })
			s.RTPStatsTimestampUs = v.TimestampUs
			s.PacketsReceived = v.PacketsReceived
			s.BytesReceived = v.BytesReceived
			s.FramesDecoded = v.FramesDecoded
		case TrackRecord:
			if v.Kind != KindVideo || !v.RemoteSource {
				continue
			}
			s := join.slot(v.TrackIdentifier, func(s *VideoReceiverStats) { s.TrackIdentifier = v.TrackIdentifier })
			s.TrackStatsTimestampUs = v.TimestampUs
			s.FramesReceived = v.FramesReceived
			s.FramesDropped = v.FramesDropped
		}
	}
	return join.rows
}
