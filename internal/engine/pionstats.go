package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/thesyncim/rtcbridge/pkg/stats"
)

// remoteTrackCounter accumulates per-track receive counters. The engine
// does not decode remote media, so frame counts come from RTP framing:
// marker bit for video, one frame per packet for audio.
type remoteTrackCounter struct {
	id   string
	kind stats.MediaKind

	mu          sync.Mutex
	packets     uint64
	bytes       uint64
	frames      uint32
	timestampUs int64
}

func (s *pionSession) pumpRemoteTrack(tr *webrtc.TrackRemote, c *remoteTrackCounter, kind TrackKind) {
	for {
		pkt, _, err := tr.ReadRTP()
		if err != nil {
			if !s.closed.Load() {
				s.emit(TrackRemoved{Kind: kind})
			}
			return
		}
		c.account(pkt, kind)
	}
}

func (c *remoteTrackCounter) account(pkt *rtp.Packet, kind TrackKind) {
	c.mu.Lock()
	c.packets++
	c.bytes += uint64(pkt.MarshalSize())
	if kind == TrackKindAudio || pkt.Marker {
		c.frames++
	}
	c.timestampUs = time.Now().UnixMicro()
	c.mu.Unlock()
}

func (c *remoteTrackCounter) records() (stats.InboundRTPRecord, stats.TrackRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbound := stats.InboundRTPRecord{
		TimestampUs:     c.timestampUs,
		TrackID:         c.id,
		Kind:            c.kind,
		PacketsReceived: c.packets,
		BytesReceived:   c.bytes,
		FramesDecoded:   c.frames,
	}
	track := stats.TrackRecord{
		TimestampUs:     c.timestampUs,
		TrackIdentifier: c.id,
		Kind:            c.kind,
		RemoteSource:    true,
		FramesReceived:  c.frames,
	}
	return inbound, track
}

func (v *pionVideoSender) outboundRecord() stats.OutboundRTPRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return stats.OutboundRTPRecord{
		TimestampUs:   v.timestampUs,
		TrackID:       v.id,
		Kind:          stats.KindVideo,
		PacketsSent:   v.packetsSent,
		BytesSent:     v.bytesSent,
		FramesEncoded: v.framesEncoded,
	}
}

func (v *pionVideoSender) trackRecord() stats.TrackRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return stats.TrackRecord{
		TimestampUs:     v.timestampUs,
		TrackIdentifier: v.id,
		Kind:            stats.KindVideo,
		FramesSent:      v.framesSent,
		HugeFramesSent:  v.hugeFrames,
	}
}

func (a *pionAudioSender) outboundRecord() stats.OutboundRTPRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return stats.OutboundRTPRecord{
		TimestampUs: a.timestampUs,
		TrackID:     a.id,
		Kind:        stats.KindAudio,
		PacketsSent: a.packetsSent,
		BytesSent:   a.bytesSent,
	}
}

func (a *pionAudioSender) trackRecord() stats.TrackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return stats.TrackRecord{
		TimestampUs:          a.timestampUs,
		TrackIdentifier:      a.id,
		Kind:                 stats.KindAudio,
		AudioLevel:           a.audioLevel,
		TotalAudioEnergy:     a.totalEnergy,
		TotalSamplesDuration: a.totalDuration,
	}
}

// GetStats snapshots sender and receiver counters and merges in the
// transport and data channel measurements the engine keeps itself.
func (s *pionSession) GetStats() ([]stats.Record, error) {
	if s.closed.Load() {
		return nil, ErrPeerClosed
	}

	s.mu.Lock()
	videoSenders := append([]*pionVideoSender(nil), s.videoSenders...)
	audioSenders := append([]*pionAudioSender(nil), s.audioSenders...)
	detached := append([]stats.OutboundRTPRecord(nil), s.detached...)
	remotes := make([]*remoteTrackCounter, 0, len(s.remoteTracks))
	for _, c := range s.remoteTracks {
		remotes = append(remotes, c)
	}
	s.mu.Unlock()
	sort.Slice(remotes, func(i, j int) bool { return remotes[i].id < remotes[j].id })

	var records []stats.Record
	for _, v := range videoSenders {
		records = append(records, v.outboundRecord(), v.trackRecord())
	}
	for _, a := range audioSenders {
		records = append(records, a.outboundRecord(), a.trackRecord())
	}
	for _, rec := range detached {
		records = append(records, rec)
	}
	for _, c := range remotes {
		inbound, track := c.records()
		records = append(records, inbound, track)
	}

	var channels []stats.DataChannelRecord
	for _, report := range s.pc.GetStats() {
		switch v := report.(type) {
		case webrtc.DataChannelStats:
			channels = append(channels, stats.DataChannelRecord{
				TimestampUs:      statsTimestampUs(v.Timestamp),
				DataChannelID:    int64(v.DataChannelIdentifier),
				MessagesSent:     uint64(v.MessagesSent),
				BytesSent:        v.BytesSent,
				MessagesReceived: uint64(v.MessagesReceived),
				BytesReceived:    v.BytesReceived,
			})
		case webrtc.TransportStats:
			if v.ID != "iceTransport" {
				continue
			}
			records = append(records, stats.TransportRecord{
				TimestampUs:   statsTimestampUs(v.Timestamp),
				BytesSent:     v.BytesSent,
				BytesReceived: v.BytesReceived,
			})
		}
	}
	// StatsReport is a map, so impose a stable channel order.
	sort.Slice(channels, func(i, j int) bool { return channels[i].DataChannelID < channels[j].DataChannelID })
	for _, ch := range channels {
		records = append(records, ch)
	}
	return records, nil
}

func statsTimestampUs(ts webrtc.StatsTimestamp) int64 {
	return int64(float64(ts) * 1000)
}
