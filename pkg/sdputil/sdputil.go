// Package sdputil rewrites SDP media sections to pin codec selection
// before a description is handed to the remote peer.
package sdputil

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

// CodecFilter names the codec an audio or video section is reduced to.
type CodecFilter struct {
	// Name is the rtpmap encoding name to keep, compared
	// case-insensitively. Empty leaves the section untouched.
	Name string

	// ExtraParams is appended to the fmtp line of every kept payload type
	// of the named codec. A missing fmtp line is created.
	ExtraParams string
}

// ForceCodecs parses message and reduces every audio section to the audio
// filter's codec and every video section to the video filter's codec,
// keeping rtx companions bound via apt. A section whose codec does not
// appear is left unchanged, so a bad filter degrades to a no-op instead of
// producing an unanswerable description.
func ForceCodecs(message string, audio, video CodecFilter) (string, error) {
	desc := &sdp.SessionDescription{}
	if err := desc.Unmarshal([]byte(message)); err != nil {
		return "", fmt.Errorf("sdputil: unmarshal session: %w", err)
	}
	for _, media := range desc.MediaDescriptions {
		switch media.MediaName.Media {
		case "audio":
			forceMediaCodec(media, audio)
		case "video":
			forceMediaCodec(media, video)
		}
	}
	out, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("sdputil: marshal session: %w", err)
	}
	return string(out), nil
}

func forceMediaCodec(media *sdp.MediaDescription, filter CodecFilter) {
	if filter.Name == "" {
		return
	}

	// Payload type → rtpmap encoding name.
	names := make(map[string]string)
	for _, attr := range media.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		pt, rest, ok := splitPayload(attr.Value)
		if !ok {
			continue
		}
		name := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			name = rest[:i]
		}
		names[pt] = name
	}

	primary := make(map[string]bool)
	for pt, name := range names {
		if strings.EqualFold(name, filter.Name) {
			primary[pt] = true
		}
	}
	if len(primary) == 0 {
		return
	}

	kept := make(map[string]bool, len(primary))
	for pt := range primary {
		kept[pt] = true
	}
	for _, attr := range media.Attributes {
		if attr.Key != "fmtp" {
			continue
		}
		pt, rest, ok := splitPayload(attr.Value)
		if !ok || !strings.EqualFold(names[pt], "rtx") {
			continue
		}
		if apt, ok := aptTarget(rest); ok && primary[apt] {
			kept[pt] = true
		}
	}

	var formats []string
	for _, f := range media.MediaName.Formats {
		if kept[f] {
			formats = append(formats, f)
		}
	}
	media.MediaName.Formats = formats

	appended := make(map[string]bool)
	attrs := media.Attributes[:0]
	for _, attr := range media.Attributes {
		switch attr.Key {
		case "rtpmap", "rtcp-fb", "fmtp":
			pt, rest, ok := splitPayload(attr.Value)
			if ok && pt != "*" && !kept[pt] {
				continue
			}
			if attr.Key == "fmtp" && primary[pt] && filter.ExtraParams != "" {
				attr.Value = pt + " " + joinParams(rest, filter.ExtraParams)
				appended[pt] = true
			}
		}
		attrs = append(attrs, attr)
	}
	if filter.ExtraParams != "" {
		for _, f := range formats {
			if primary[f] && !appended[f] {
				attrs = append(attrs, sdp.Attribute{Key: "fmtp", Value: f + " " + filter.ExtraParams})
			}
		}
	}
	media.Attributes = attrs
}

// splitPayload separates an attribute value of the shape "<pt> <rest>".
func splitPayload(v string) (pt, rest string, ok bool) {
	if v == "" {
		return "", "", false
	}
	i := strings.IndexByte(v, ' ')
	if i < 0 {
		return v, "", true
	}
	return v[:i], v[i+1:], true
}

func aptTarget(params string) (string, bool) {
	for _, p := range strings.Split(params, ";") {
		p = strings.TrimSpace(p)
		if rest, ok := strings.CutPrefix(p, "apt="); ok {
			return rest, true
		}
	}
	return "", false
}

func joinParams(existing, extra string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return extra
	}
	return existing + ";" + extra
}
