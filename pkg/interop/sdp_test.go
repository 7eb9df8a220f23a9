package interop

import (
	"bytes"
	"strings"
	"testing"
	"unsafe"
)

const testSDP = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111 9\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"a=rtpmap:9 G722/8000\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96 97 98\r\n" +
	"a=rtpmap:96 VP8/90000\r\n" +
	"a=rtpmap:97 rtx/90000\r\n" +
	"a=fmtp:97 apt=96\r\n" +
	"a=rtpmap:98 H264/90000\r\n"

func TestSdpForceCodecsProbeThenRetry(t *testing.T) {
	filter := SdpFilter{CodecName: "opus"}

	// Probe with no buffer: size comes back, result signals the shortfall.
	var size uint64
	if res := SdpForceCodecs(testSDP, filter, SdpFilter{}, nil, &size); res != ResultInvalidParameter {
		t.Fatalf("probe = %v, want %v", res, ResultInvalidParameter)
	}
	if size == 0 {
		t.Fatal("probe did not report the required size")
	}

	// One byte short still reports the same requirement.
	short := make([]byte, size-1)
	var shortSize uint64
	if res := SdpForceCodecs(testSDP, filter, SdpFilter{}, short, &shortSize); res != ResultInvalidParameter {
		t.Fatalf("short buffer = %v, want %v", res, ResultInvalidParameter)
	}
	if shortSize != size {
		t.Errorf("short-buffer size = %d, want %d", shortSize, size)
	}

	buf := make([]byte, size)
	var retrySize uint64
	if res := SdpForceCodecs(testSDP, filter, SdpFilter{}, buf, &retrySize); res != ResultSuccess {
		t.Fatalf("retry = %v", res)
	}
	if retrySize != size {
		t.Errorf("retry size = %d, want %d", retrySize, size)
	}
	if buf[size-1] != 0 {
		t.Error("output is not NUL-terminated")
	}

	out := string(buf[:bytes.IndexByte(buf, 0)])
	if !strings.Contains(out, "opus") {
		t.Error("forced codec missing from output")
	}
	if strings.Contains(out, "G722") {
		t.Error("filtered codec still present in output")
	}
}

func TestSdpForceCodecsKeepsRtxCompanion(t *testing.T) {
	var size uint64
	SdpForceCodecs(testSDP, SdpFilter{}, SdpFilter{CodecName: "VP8"}, nil, &size)
	buf := make([]byte, size)
	if res := SdpForceCodecs(testSDP, SdpFilter{}, SdpFilter{CodecName: "VP8"}, buf, &size); res != ResultSuccess {
		t.Fatalf("SdpForceCodecs: %v", res)
	}
	out := string(buf[:bytes.IndexByte(buf, 0)])
	if !strings.Contains(out, "m=video 9 UDP/TLS/RTP/SAVPF 96 97") {
		t.Errorf("video m-line lost the rtx companion:\n%s", out)
	}
	if strings.Contains(out, "H264") {
		t.Error("filtered codec still present in output")
	}
}

func TestSdpForceCodecsParameterValidation(t *testing.T) {
	var size uint64
	if res := SdpForceCodecs("", SdpFilter{}, SdpFilter{}, nil, &size); res != ResultInvalidParameter {
		t.Errorf("empty message = %v, want %v", res, ResultInvalidParameter)
	}
	if res := SdpForceCodecs(testSDP, SdpFilter{}, SdpFilter{}, nil, nil); res != ResultInvalidParameter {
		t.Errorf("nil size = %v, want %v", res, ResultInvalidParameter)
	}
}

func TestMemCopy(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	dst := make([]byte, 4)
	if res := MemCopy(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 4); res != ResultSuccess {
		t.Fatalf("MemCopy: %v", res)
	}
	if !bytes.Equal(dst, src) {
		t.Errorf("dst = %v, want %v", dst, src)
	}

	if res := MemCopy(nil, unsafe.Pointer(&src[0]), 4); res != ResultInvalidParameter {
		t.Errorf("nil dst = %v, want %v", res, ResultInvalidParameter)
	}
	if res := MemCopy(nil, nil, 0); res != ResultSuccess {
		t.Errorf("zero-size copy = %v, want success", res)
	}
}

func TestMemCopyStridePackedMatchesStrided(t *testing.T) {
	const elemSize, elemCount = 8, 16
	src := make([]byte, elemSize*elemCount)
	for i := range src {
		src[i] = byte(i)
	}

	packed := make([]byte, elemSize*elemCount)
	if res := MemCopyStride(unsafe.Pointer(&packed[0]), elemSize, unsafe.Pointer(&src[0]), elemSize, elemSize, elemCount); res != ResultSuccess {
		t.Fatalf("packed copy: %v", res)
	}

	const stride = elemSize + 4
	strided := make([]byte, stride*elemCount)
	if res := MemCopyStride(unsafe.Pointer(&strided[0]), stride, unsafe.Pointer(&src[0]), elemSize, elemSize, elemCount); res != ResultSuccess {
		t.Fatalf("strided copy: %v", res)
	}

	for row := 0; row < elemCount; row++ {
		p := packed[row*elemSize : row*elemSize+elemSize]
		s := strided[row*stride : row*stride+elemSize]
		if !bytes.Equal(p, s) {
			t.Fatalf("row %d differs: packed %v, strided %v", row, p, s)
		}
	}
}

func TestMemCopyStrideValidation(t *testing.T) {
	buf := make([]byte, 16)
	if res := MemCopyStride(unsafe.Pointer(&buf[0]), 2, unsafe.Pointer(&buf[0]), 4, 4, 2); res != ResultInvalidParameter {
		t.Errorf("stride < elemSize = %v, want %v", res, ResultInvalidParameter)
	}
	if res := MemCopyStride(nil, 4, nil, 4, 4, 0); res != ResultSuccess {
		t.Errorf("zero rows = %v, want success", res)
	}
	if res := MemCopyStride(nil, 4, unsafe.Pointer(&buf[0]), 4, 4, 2); res != ResultInvalidParameter {
		t.Errorf("nil dst = %v, want %v", res, ResultInvalidParameter)
	}
}
