package stats

import (
	"testing"
)

func TestAudioSenderJoinOrderIndependent(t *testing.T) {
	rtp := OutboundRTPRecord{TimestampUs: 100, TrackID: "T1", Kind: KindAudio, PacketsSent: 10, BytesSent: 1000}
	track := TrackRecord{TimestampUs: 200, TrackIdentifier: "T1", Kind: KindAudio, RemoteSource: false, AudioLevel: 0.5}

	for name, records := range map[string][]Record{
		"rtp-first":   {rtp, track},
		"track-first": {track, rtp},
	} {
		out := NewReport(records).AudioSenders()
		if len(out) != 1 {
			t.Fatalf("%s: got %d rows, want 1", name, len(out))
		}
		s := out[0]
		if s.TrackIdentifier != "T1" {
			t.Errorf("%s: TrackIdentifier = %q, want T1", name, s.TrackIdentifier)
		}
		if s.PacketsSent != 10 {
			t.Errorf("%s: PacketsSent = %d, want 10", name, s.PacketsSent)
		}
		if s.AudioLevel != 0.5 {
			t.Errorf("%s: AudioLevel = %v, want 0.5", name, s.AudioLevel)
		}
		if s.RTPStatsTimestampUs != 100 || s.TrackStatsTimestampUs != 200 {
			t.Errorf("%s: timestamps = %d/%d, want 100/200", name, s.RTPStatsTimestampUs, s.TrackStatsTimestampUs)
		}
	}
}

func TestSenderJoinSkipsTracklessRTP(t *testing.T) {
	withTrackless := NewReport([]Record{
		OutboundRTPRecord{TrackID: "T1", Kind: KindAudio, PacketsSent: 10},
		OutboundRTPRecord{TrackID: "", Kind: KindAudio, PacketsSent: 99},
	}).AudioSenders()
	without := NewReport([]Record{
		OutboundRTPRecord{TrackID: "T1", Kind: KindAudio, PacketsSent: 10},
	}).AudioSenders()

	if len(withTrackless) != len(without) {
		t.Errorf("trackless RTP record changed row count: %d vs %d", len(withTrackless), len(without))
	}
	if len(without) != 1 || without[0].TrackIdentifier != "T1" {
		t.Fatalf("rows = %+v, want single T1 row", without)
	}
}

func TestJoinEmissionOrderIsFirstInsertion(t *testing.T) {
	out := NewReport([]Record{
		TrackRecord{TrackIdentifier: "T2", Kind: KindVideo, FramesSent: 7},
		OutboundRTPRecord{TrackID: "T1", Kind: KindVideo, FramesEncoded: 3},
		OutboundRTPRecord{TrackID: "T2", Kind: KindVideo, FramesEncoded: 9},
	}).VideoSenders()

	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	if out[0].TrackIdentifier != "T2" || out[1].TrackIdentifier != "T1" {
		t.Errorf("row order = [%s %s], want [T2 T1]", out[0].TrackIdentifier, out[1].TrackIdentifier)
	}
	if out[0].FramesSent != 7 || out[0].FramesEncoded != 9 {
		t.Errorf("T2 row = %+v, want FramesSent=7 FramesEncoded=9", out[0])
	}
}

func TestJoinFiltersKindAndDirection(t *testing.T) {
	report := NewReport([]Record{
		OutboundRTPRecord{TrackID: "A", Kind: KindAudio, PacketsSent: 1},
		OutboundRTPRecord{TrackID: "V", Kind: KindVideo, PacketsSent: 2},
		InboundRTPRecord{TrackID: "RA", Kind: KindAudio, PacketsReceived: 3},
		TrackRecord{TrackIdentifier: "A", Kind: KindAudio, RemoteSource: false, AudioLevel: 0.25},
		TrackRecord{TrackIdentifier: "RA", Kind: KindAudio, RemoteSource: true, AudioLevel: 0.75},
		TrackRecord{TrackIdentifier: "RV", Kind: KindVideo, RemoteSource: true, FramesReceived: 12},
	})

	senders := report.AudioSenders()
	if len(senders) != 1 || senders[0].TrackIdentifier != "A" || senders[0].AudioLevel != 0.25 {
		t.Errorf("AudioSenders = %+v, want single local A row", senders)
	}

	receivers := report.AudioReceivers()
	if len(receivers) != 1 || receivers[0].TrackIdentifier != "RA" {
		t.Fatalf("AudioReceivers = %+v, want single RA row", receivers)
	}
	if receivers[0].PacketsReceived != 3 || receivers[0].AudioLevel != 0.75 {
		t.Errorf("RA row = %+v, want PacketsReceived=3 AudioLevel=0.75", receivers[0])
	}

	vrecv := report.VideoReceivers()
	if len(vrecv) != 1 || vrecv[0].TrackIdentifier != "RV" || vrecv[0].FramesReceived != 12 {
		t.Errorf("VideoReceivers = %+v, want single RV row", vrecv)
	}
}

func TestDataChannelsOneToOne(t *testing.T) {
	report := NewReport([]Record{
		DataChannelRecord{TimestampUs: 1, DataChannelID: 4, MessagesSent: 2, BytesSent: 20},
		TransportRecord{TimestampUs: 2, BytesSent: 100},
		DataChannelRecord{TimestampUs: 3, DataChannelID: 5, MessagesReceived: 7, BytesReceived: 70},
	})

	out := report.DataChannels()
	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	if out[0].DataChannelID != 4 || out[1].DataChannelID != 5 {
		t.Errorf("channel ids = [%d %d], want [4 5]", out[0].DataChannelID, out[1].DataChannelID)
	}
	if out[1].MessagesReceived != 7 || out[1].BytesReceived != 70 {
		t.Errorf("row 1 = %+v, want MessagesReceived=7 BytesReceived=70", out[1])
	}
}

func TestTransportsOneToOne(t *testing.T) {
	out := NewReport([]Record{
		TransportRecord{TimestampUs: 9, BytesSent: 100, BytesReceived: 200},
	}).Transports()
	if len(out) != 1 {
		t.Fatalf("got %d rows, want 1", len(out))
	}
	if out[0].BytesSent != 100 || out[0].BytesReceived != 200 {
		t.Errorf("row = %+v, want BytesSent=100 BytesReceived=200", out[0])
	}
}

func TestNewReportSnapshotsRecords(t *testing.T) {
	records := []Record{TransportRecord{BytesSent: 1}}
	report := NewReport(records)
	records[0] = TransportRecord{BytesSent: 999}

	out := report.Transports()
	if len(out) != 1 || out[0].BytesSent != 1 {
		t.Errorf("report saw later mutation: %+v", out)
	}
	if report.ID() == "" || report.TimestampUs() == 0 {
		t.Errorf("report missing id/timestamp: %q %d", report.ID(), report.TimestampUs())
	}
}
