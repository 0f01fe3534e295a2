package rtc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gammazero/deque"
	"github.com/pion/ice/v4"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

// Options configures one peer transport.
type Options struct {
	ICEServers []webrtc.ICEServer
	EnableMDNS bool
}

func DefaultOptions() Options {
	return Options{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// PeerConnection wraps one pion peer connection with the small surface the
// mesh engine needs: offer/answer production, remote description application
// and trickled candidates. Candidates that arrive before the remote
// description are queued FIFO and flushed once it lands; they are never
// dropped.
type PeerConnection struct {
	pc      *webrtc.PeerConnection
	mu      sync.Mutex
	pending deque.Deque[webrtc.ICECandidateInit]
}

func NewPeerConnection(options Options) (*PeerConnection, error) {
	se := webrtc.SettingEngine{}
	if !options.EnableMDNS {
		se.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithSettingEngine(se), webrtc.WithMediaEngine(me))

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: options.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	return &PeerConnection{pc: pc}, nil
}

// CreateOffer produces and applies the local offer.
func (p *PeerConnection) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create offer: %w", err)
	}

	if err := p.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}

	slog.Debug("created offer", "sdp", DescribeSession(offer))

	return offer, nil
}

// CreateAnswer produces and applies the local answer to a previously applied
// remote offer.
func (p *PeerConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}

	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to set local description: %w", err)
	}

	slog.Debug("created answer", "sdp", DescribeSession(answer))

	return answer, nil
}

// SetRemoteDescription applies the remote description and flushes any queued
// candidates in arrival order.
func (p *PeerConnection) SetRemoteDescription(sd webrtc.SessionDescription) error {
	slog.Debug("applying remote description", "sdp", DescribeSession(sd))

	if err := p.pc.SetRemoteDescription(sd); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	p.flushPendingCandidates()

	return nil
}

// AddICECandidate applies the candidate, or queues it while the remote
// description is still unset.
func (p *PeerConnection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if p.pc.RemoteDescription() == nil {
		p.pending.PushBack(candidate)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add ice candidate: %w", err)
	}

	return nil
}

func (p *PeerConnection) flushPendingCandidates() {
	p.mu.Lock()
	queued := make([]webrtc.ICECandidateInit, 0, p.pending.Len())
	for p.pending.Len() > 0 {
		queued = append(queued, p.pending.PopFront())
	}
	p.mu.Unlock()

	for _, candidate := range queued {
		if err := p.pc.AddICECandidate(candidate); err != nil {
			slog.Warn("failed to apply queued ice candidate", "error", err)
		}
	}
}

// PendingCandidates reports how many candidates are queued awaiting the
// remote description.
func (p *PeerConnection) PendingCandidates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Len()
}

func (p *PeerConnection) AddTrack(track webrtc.TrackLocal) error {
	if _, err := p.pc.AddTrack(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}

	return nil
}

func (p *PeerConnection) WriteRTCP(packets []rtcp.Packet) error {
	return p.pc.WriteRTCP(packets)
}

// OnICECandidate registers the candidate-produced event. The end-of-gathering
// nil candidate pion emits is filtered out.
func (p *PeerConnection) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		f(candidate.ToJSON())
	})
}

func (p *PeerConnection) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	p.pc.OnTrack(f)
}

func (p *PeerConnection) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(f)
}

func (p *PeerConnection) OnNegotiationNeeded(f func()) {
	p.pc.OnNegotiationNeeded(f)
}

func (p *PeerConnection) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

func (p *PeerConnection) Close() error {
	return p.pc.Close()
}
