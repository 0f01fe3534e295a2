package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// DescribeSession returns a one-line summary of a session description,
// e.g. "offer: 2 media (audio, video)". Intended for debug logging; the full
// SDP body is never logged.
func DescribeSession(sd webrtc.SessionDescription) string {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(sd.SDP)); err != nil {
		return fmt.Sprintf("%s: unparsable sdp", sd.Type)
	}

	kinds := make([]string, 0, len(parsed.MediaDescriptions))
	for _, m := range parsed.MediaDescriptions {
		kinds = append(kinds, m.MediaName.Media)
	}

	return fmt.Sprintf("%s: %d media (%s)", sd.Type, len(kinds), strings.Join(kinds, ", "))
}
