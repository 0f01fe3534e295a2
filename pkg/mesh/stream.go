package mesh

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

const keyframeInterval = 3 * time.Second

// TrackInfo is a snapshot of one inbound media track.
type TrackInfo struct {
	ID      string
	Kind    string
	Packets uint64
	Bytes   uint64
}

// StreamInfo is a snapshot of everything received from one remote peer.
type StreamInfo struct {
	PeerID string
	Name   string
	Tracks []TrackInfo
}

// remoteStream is the per-peer entry of the remote stream table. The display
// name is joined in lazily; presence and media can be learned in either
// order.
type remoteStream struct {
	peerID string
	name   string
	mu     sync.Mutex
	tracks map[string]*trackCounter
}

type trackCounter struct {
	id      string
	kind    string
	packets atomic.Uint64
	bytes   atomic.Uint64
}

func newRemoteStream(peerID, name string) *remoteStream {
	return &remoteStream{
		peerID: peerID,
		name:   name,
		tracks: make(map[string]*trackCounter),
	}
}

func (s *remoteStream) addTrack(track *webrtc.TrackRemote) *trackCounter {
	counter := &trackCounter{
		id:   track.ID(),
		kind: track.Kind().String(),
	}

	s.mu.Lock()
	s.tracks[track.ID()] = counter
	s.mu.Unlock()

	return counter
}

func (s *remoteStream) snapshot() StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := StreamInfo{
		PeerID: s.peerID,
		Name:   s.name,
		Tracks: make([]TrackInfo, 0, len(s.tracks)),
	}

	for _, counter := range s.tracks {
		info.Tracks = append(info.Tracks, TrackInfo{
			ID:      counter.id,
			Kind:    counter.kind,
			Packets: counter.packets.Load(),
			Bytes:   counter.bytes.Load(),
		})
	}

	return info
}

// readTrack drains RTP from an inbound track, keeping counters up to date.
// Video tracks get a periodic PLI so a late-joining receiver converges on a
// keyframe. Returns when the track or transport closes.
func readTrack(transport Transport, track *webrtc.TrackRemote, counter *trackCounter) {
	done := make(chan struct{})
	defer close(done)

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go func() {
			ticker := time.NewTicker(keyframeInterval)
			defer ticker.Stop()

			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					transport.WriteRTCP([]rtcp.Packet{
						&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
					})
				}
			}
		}()
	}

	var pkt *rtp.Packet
	for {
		var err error
		pkt, _, err = track.ReadRTP()
		if err != nil {
			return
		}

		counter.packets.Add(1)
		counter.bytes.Add(uint64(len(pkt.Payload)))
	}
}
