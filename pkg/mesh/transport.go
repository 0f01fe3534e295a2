package mesh

import (
	"github.com/HMasataka/huddle/pkg/rtc"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
)

// Transport is the peer-to-peer session primitive the engine negotiates
// over: description exchange, trickled candidates and media tracks. The
// engine treats it as opaque; rtc.PeerConnection is the production
// implementation.
//
//go:generate mockgen -source transport.go -destination mock/transport.go -package mock
type Transport interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(sd webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	AddTrack(track webrtc.TrackLocal) error
	WriteRTCP(packets []rtcp.Packet) error
	OnICECandidate(f func(webrtc.ICECandidateInit))
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	OnNegotiationNeeded(f func())
	Close() error
}

// TransportFactory creates one transport per remote peer.
type TransportFactory func() (Transport, error)

var _ Transport = (*rtc.PeerConnection)(nil)

// NewTransportFactory returns a factory producing pion-backed transports.
func NewTransportFactory(options rtc.Options) TransportFactory {
	return func() (Transport, error) {
		return rtc.NewPeerConnection(options)
	}
}
