package handler_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/huddle/internal/room"
	internalsignal "github.com/HMasataka/huddle/internal/signal"
	"github.com/HMasataka/huddle/internal/signal/handler"
	payload "github.com/HMasataka/huddle/payload/signal"
	"github.com/HMasataka/huddle/pkg/mesh"
	"github.com/HMasataka/huddle/pkg/retry"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flowTransport is just enough of a peer transport to drive description
// exchange through the coordinator.
type flowTransport struct {
	mu     sync.Mutex
	closed bool
	remote *webrtc.SessionDescription
}

func (t *flowTransport) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}, nil
}

func (t *flowTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}, nil
}

func (t *flowTransport) SetRemoteDescription(sd webrtc.SessionDescription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remote = &sd
	return nil
}

func (t *flowTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error { return nil }
func (t *flowTransport) AddTrack(track webrtc.TrackLocal) error                  { return nil }
func (t *flowTransport) WriteRTCP(packets []rtcp.Packet) error                   { return nil }

func (t *flowTransport) OnICECandidate(f func(webrtc.ICECandidateInit))             {}
func (t *flowTransport) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))   {}
func (t *flowTransport) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {}
func (t *flowTransport) OnNegotiationNeeded(f func())                               {}

func (t *flowTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

type flowCapture struct{}

func (flowCapture) Tracks() []webrtc.TrackLocal { return nil }
func (flowCapture) Close() error                { return nil }

// loopbackSender delivers server-side sends straight into the client engine,
// standing in for the websocket hop.
type loopbackSender struct {
	mu     sync.Mutex
	engine *mesh.Engine
}

func (s *loopbackSender) attach(engine *mesh.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
}

func (s *loopbackSender) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()

	var msg payload.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	return engine.HandleMessage(context.Background(), &msg)
}

func (s *loopbackSender) Start(ctx context.Context) {}
func (s *loopbackSender) Close() error              { return nil }

// routerSignaler delivers client-side sends straight into the router.
type routerSignaler struct {
	router *internalsignal.Router
	sess   *internalsignal.Session
}

func (s *routerSignaler) Send(ctx context.Context, msg *payload.Message) error {
	_, err := s.router.Handle(ctx, s.sess, msg)
	return err
}

type flowClient struct {
	id       string
	engine   *mesh.Engine
	signaler *routerSignaler
}

func connectFlowClient(t *testing.T, router *internalsignal.Router, roomID, participantID string) *flowClient {
	t.Helper()

	sender := &loopbackSender{}
	sess := internalsignal.NewSession(sender)
	signaler := &routerSignaler{router: router, sess: sess}

	factory := func() (mesh.Transport, error) { return &flowTransport{}, nil }

	engine := mesh.NewEngine(participantID, "", signaler, factory, flowCapture{}, mesh.EngineOptions{
		OfferRetry: retry.Config{
			Attempts:     1,
			BaseInterval: time.Hour,
			MaxBackoff:   time.Hour,
		},
		RenegotiationDelay: time.Millisecond,
	})
	sender.attach(engine)
	t.Cleanup(func() { engine.Close() })

	join, err := payload.NewJoinRoomMessage(payload.JoinRoomPayload{
		RoomID:        roomID,
		ParticipantID: participantID,
	})
	require.NoError(t, err)
	require.NoError(t, signaler.Send(context.Background(), join))

	return &flowClient{id: participantID, engine: engine, signaler: signaler}
}

func TestSignalingFlow(t *testing.T) {
	t.Run("二者が合流して両側connectedになる", func(t *testing.T) {
		registry := room.NewRegistry(room.DefaultRegistryOptions())
		router := handler.NewSignalingRouter(registry)

		p1 := connectFlowClient(t, router, "r1", "p1")
		p2 := connectFlowClient(t, router, "r1", "p2")

		require.Eventually(t, func() bool {
			s1, ok1 := p1.engine.NegotiationState("p2")
			s2, ok2 := p2.engine.NegotiationState("p1")
			return ok1 && ok2 && s1 == mesh.StateConnected && s2 == mesh.StateConnected
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("離脱が残った側に伝わる", func(t *testing.T) {
		registry := room.NewRegistry(room.DefaultRegistryOptions())
		router := handler.NewSignalingRouter(registry)

		p1 := connectFlowClient(t, router, "r1", "p1")
		p2 := connectFlowClient(t, router, "r1", "p2")

		require.Eventually(t, func() bool {
			s, ok := p1.engine.NegotiationState("p2")
			return ok && s == mesh.StateConnected
		}, 2*time.Second, 10*time.Millisecond)

		leave, err := payload.NewLeaveRoomMessage()
		require.NoError(t, err)
		require.NoError(t, p2.signaler.Send(context.Background(), leave))

		require.Eventually(t, func() bool {
			_, ok := p1.engine.NegotiationState("p2")
			return !ok
		}, 2*time.Second, 10*time.Millisecond)

		assert.Empty(t, p1.engine.Streams())
	})

	t.Run("三者メッシュは全ペアを張る", func(t *testing.T) {
		registry := room.NewRegistry(room.DefaultRegistryOptions())
		router := handler.NewSignalingRouter(registry)

		clients := []*flowClient{
			connectFlowClient(t, router, "r1", "p1"),
			connectFlowClient(t, router, "r1", "p2"),
			connectFlowClient(t, router, "r1", "p3"),
		}

		require.Eventually(t, func() bool {
			for _, c := range clients {
				for _, other := range clients {
					if c.id == other.id {
						continue
					}
					s, ok := c.engine.NegotiationState(other.id)
					if !ok || s != mesh.StateConnected {
						return false
					}
				}
			}
			return true
		}, 3*time.Second, 10*time.Millisecond)
	})
}
