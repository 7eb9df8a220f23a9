package interop

import "github.com/thesyncim/rtcbridge/pkg/sdputil"

// SdpFilter names the codec one media kind is reduced to. An empty
// CodecName leaves sections of that kind untouched.
type SdpFilter struct {
	CodecName   string
	ExtraParams string
}

// SdpForceCodecs rewrites message so every audio section carries only the
// audio filter's codec and every video section only the video filter's
// codec, including rtx companions, with extra fmtp parameters appended.
// The rewritten SDP is copied into buffer as a NUL-terminated string.
//
// inOutSize always receives the required byte count including the
// terminating NUL, even when buffer is too small, so callers can probe
// with an empty buffer, allocate, and retry.
func SdpForceCodecs(message string, audio, video SdpFilter, buffer []byte, inOutSize *uint64) Result {
	if message == "" || inOutSize == nil {
		return ResultInvalidParameter
	}
	*inOutSize = 0

	out, err := sdputil.ForceCodecs(message,
		sdputil.CodecFilter{Name: audio.CodecName, ExtraParams: audio.ExtraParams},
		sdputil.CodecFilter{Name: video.CodecName, ExtraParams: video.ExtraParams},
	)
	if err != nil {
		return resultFromError(err)
	}

	required := uint64(len(out)) + 1
	*inOutSize = required
	if uint64(len(buffer)) < required {
		return ResultInvalidParameter
	}
	copy(buffer, out)
	buffer[len(out)] = 0
	return ResultSuccess
}
