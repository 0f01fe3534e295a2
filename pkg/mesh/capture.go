package mesh

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// ErrCaptureUnavailable the local media source could not be acquired. Aborts
// only the join attempt that needed it.
var ErrCaptureUnavailable = errors.New("capture device unavailable")

// Capture produces the local media tracks attached to every peer transport.
// The engine only needs track references; acquisition is the caller's
// platform concern.
type Capture interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

// StaticCapture serves sample-fed local tracks. It stands in for a real
// camera/microphone in the reference client and in tests.
type StaticCapture struct {
	tracks []webrtc.TrackLocal
}

var _ Capture = (*StaticCapture)(nil)

func NewStaticCapture(audio, video bool) (*StaticCapture, error) {
	var tracks []webrtc.TrackLocal

	if audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio", "huddle-audio",
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}
		tracks = append(tracks, track)
	}

	if video {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", "huddle-video",
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}
		tracks = append(tracks, track)
	}

	return &StaticCapture{tracks: tracks}, nil
}

func (c *StaticCapture) Tracks() []webrtc.TrackLocal {
	return c.tracks
}

// Close releases the tracks. Static tracks hold no device handle, so there
// is nothing to free beyond dropping the references.
func (c *StaticCapture) Close() error {
	c.tracks = nil
	return nil
}
