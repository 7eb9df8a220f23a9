package sdputil

import (
	"strings"
	"testing"
)

func testSDP() string {
	lines := []string{
		"v=0",
		"o=- 4611686018427387904 2 IN IP4 127.0.0.1",
		"s=-",
		"t=0 0",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111 0",
		"a=mid:0",
		"a=rtpmap:111 opus/48000/2",
		"a=fmtp:111 minptime=10;useinbandfec=1",
		"a=rtpmap:0 PCMU/8000",
		"m=video 9 UDP/TLS/RTP/SAVPF 96 97 102 103",
		"a=mid:1",
		"a=rtpmap:96 VP8/90000",
		"a=rtcp-fb:96 nack",
		"a=rtcp-fb:* transport-cc",
		"a=rtpmap:97 rtx/90000",
		"a=fmtp:97 apt=96",
		"a=rtpmap:102 H264/90000",
		"a=fmtp:102 profile-level-id=42e01f",
		"a=rtpmap:103 rtx/90000",
		"a=fmtp:103 apt=102",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func TestForceCodecsKeepsSelectedAndRtx(t *testing.T) {
	out, err := ForceCodecs(testSDP(),
		CodecFilter{Name: "opus"},
		CodecFilter{Name: "vp8", ExtraParams: "max-fr=30"},
	)
	if err != nil {
		t.Fatalf("ForceCodecs: %v", err)
	}

	if !strings.Contains(out, "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n") {
		t.Errorf("audio m-line not reduced to opus:\n%s", out)
	}
	if strings.Contains(out, "PCMU") {
		t.Error("PCMU survived the audio filter")
	}
	if !strings.Contains(out, "m=video 9 UDP/TLS/RTP/SAVPF 96 97\r\n") {
		t.Errorf("video m-line not reduced to VP8+rtx:\n%s", out)
	}
	if strings.Contains(out, "H264") || strings.Contains(out, "a=fmtp:102") || strings.Contains(out, "a=rtpmap:103") {
		t.Error("H264 or its rtx survived the video filter")
	}
	if !strings.Contains(out, "a=rtcp-fb:96 nack") {
		t.Error("rtcp-fb of the kept codec was dropped")
	}
	if !strings.Contains(out, "a=rtcp-fb:* transport-cc") {
		t.Error("wildcard rtcp-fb was dropped")
	}
	if !strings.Contains(out, "a=fmtp:97 apt=96") {
		t.Error("rtx fmtp of the kept codec was dropped")
	}
	if !strings.Contains(out, "a=fmtp:96 max-fr=30") {
		t.Error("extra fmtp params were not added for the kept codec")
	}
}

func TestForceCodecsAppendsToExistingFmtp(t *testing.T) {
	out, err := ForceCodecs(testSDP(),
		CodecFilter{Name: "opus", ExtraParams: "maxaveragebitrate=64000"},
		CodecFilter{},
	)
	if err != nil {
		t.Fatalf("ForceCodecs: %v", err)
	}
	if !strings.Contains(out, "a=fmtp:111 minptime=10;useinbandfec=1;maxaveragebitrate=64000") {
		t.Errorf("extra params not appended to existing fmtp:\n%s", out)
	}
}

func TestForceCodecsEmptyFilterLeavesSectionAlone(t *testing.T) {
	out, err := ForceCodecs(testSDP(), CodecFilter{}, CodecFilter{})
	if err != nil {
		t.Fatalf("ForceCodecs: %v", err)
	}
	for _, want := range []string{"opus", "PCMU", "VP8", "H264"} {
		if !strings.Contains(out, want) {
			t.Errorf("codec %s missing from untouched SDP", want)
		}
	}
}

func TestForceCodecsUnknownCodecLeavesSectionAlone(t *testing.T) {
	out, err := ForceCodecs(testSDP(), CodecFilter{}, CodecFilter{Name: "AV1"})
	if err != nil {
		t.Fatalf("ForceCodecs: %v", err)
	}
	if !strings.Contains(out, "m=video 9 UDP/TLS/RTP/SAVPF 96 97 102 103") {
		t.Errorf("absent codec filter changed the m-line:\n%s", out)
	}
}

func TestForceCodecsRejectsGarbage(t *testing.T) {
	if _, err := ForceCodecs("not sdp", CodecFilter{}, CodecFilter{}); err == nil {
		t.Error("ForceCodecs accepted garbage input")
	}
}
