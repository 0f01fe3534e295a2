package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	payload "github.com/HMasataka/huddle/payload/signal"
	"github.com/HMasataka/huddle/pkg/retry"
	"github.com/bep/debounce"
	"github.com/gammazero/workerpool"
	"github.com/pion/webrtc/v4"
	"github.com/samber/lo"
)

// Signaler sends a message to the coordinator. Satisfied by the websocket
// client; tests substitute an in-memory implementation.
//
//go:generate mockgen -source engine.go -destination mock/signaler.go -package mock
type Signaler interface {
	Send(ctx context.Context, msg *payload.Message) error
}

type EngineOptions struct {
	// OfferRetry bounds re-offers for a stalled offering session. After the
	// attempts are exhausted the peer is left absent until the next topology
	// event.
	OfferRetry retry.Config
	// RenegotiationDelay debounces transport renegotiation-needed events.
	RenegotiationDelay time.Duration
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		OfferRetry:         retry.DefaultConfig(),
		RenegotiationDelay: 250 * time.Millisecond,
	}
}

/*
Engine はローカル参加者から見たメッシュ全体を管理します。
リモートピアごとに独立したNegotiationを保持し、参加・離脱イベントに応じて
作成・破棄します。ピア間のフローは互いにブロックしません。
*/
type Engine struct {
	selfID   string
	name     string
	signaler Signaler
	factory  TransportFactory
	capture  Capture
	options  EngineOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	negotiations map[string]*Negotiation
	streams      map[string]*remoteStream
	names        map[string]string
	epochs       map[string]uint64

	sendPool *workerpool.WorkerPool

	onStreamChange func()
}

func NewEngine(selfID, name string, signaler Signaler, factory TransportFactory, capture Capture, options EngineOptions) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		selfID:       selfID,
		name:         name,
		signaler:     signaler,
		factory:      factory,
		capture:      capture,
		options:      options,
		ctx:          ctx,
		cancel:       cancel,
		negotiations: make(map[string]*Negotiation),
		streams:      make(map[string]*remoteStream),
		names:        make(map[string]string),
		epochs:       make(map[string]uint64),
		sendPool:     workerpool.New(1),
	}
}

func (e *Engine) SelfID() string {
	return e.selfID
}

// OnStreamChange registers a callback fired after the remote stream table
// changes. Must be set before messages are handled.
func (e *Engine) OnStreamChange(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStreamChange = f
}

// HandleMessage applies one coordinator message. The caller's read loop
// provides per-peer ordering; flows for different peers are independent.
func (e *Engine) HandleMessage(ctx context.Context, msg *payload.Message) error {
	switch msg.Type {
	case payload.MessageTypeJoinedRoom:
		var p payload.JoinedRoomPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		slog.Info("joined room",
			slog.String("room_id", p.RoomID),
			slog.Int("participant_count", p.ParticipantCount),
		)

	case payload.MessageTypeExistingParticipants:
		var p payload.ExistingParticipantsPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		// The tie-break applies no matter which discovery message revealed
		// the peer; both sides agree on who offers without coordinating.
		for _, participant := range p.Participants {
			e.setName(participant.ID, participant.Name)
			if ShouldOffer(e.selfID, participant.ID) {
				e.startOffer(participant.ID)
			}
		}

	case payload.MessageTypeParticipantJoined:
		var p payload.ParticipantJoinedPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		e.setName(p.ParticipantID, p.Name)
		if ShouldOffer(e.selfID, p.ParticipantID) {
			e.startOffer(p.ParticipantID)
		}
		// Otherwise wait; the joiner's enumeration or the tie-break on its
		// side produces the offer toward us.

	case payload.MessageTypeParticipantLeft:
		var p payload.ParticipantLeftPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		e.removePeer(p.ParticipantID)

	case payload.MessageTypeOffer:
		var p payload.SDPPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		e.handleOffer(p.FromParticipantID, p.Description)

	case payload.MessageTypeAnswer:
		var p payload.SDPPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		e.handleAnswer(p.FromParticipantID, p.Description)

	case payload.MessageTypeICECandidate:
		var p payload.CandidatePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		e.handleCandidate(p.FromParticipantID, p.Candidate)

	case payload.MessageTypeError:
		var p payload.ErrorPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		slog.Warn("coordinator reported error", "message", p.Message)

	default:
		return fmt.Errorf("unhandled message type: %s", msg.Type)
	}

	return nil
}

// startOffer begins (or restarts) an offering session toward the peer and
// supervises it until it connects or the retry budget runs out.
func (e *Engine) startOffer(peerID string) {
	if peerID == "" || peerID == e.selfID {
		return
	}

	epoch := e.bumpEpoch(peerID)

	if !e.sendOffer(peerID) {
		return
	}

	go e.superviseOffer(peerID, epoch)
}

// sendOffer builds a fresh session and transmits the offer. On failure the
// peer is left absent; the next topology event is the recovery path.
func (e *Engine) sendOffer(peerID string) bool {
	n, err := e.resetNegotiation(peerID, StateOffering)
	if err != nil {
		slog.Error("failed to create peer transport", "error", err, "peer_id", peerID)
		return false
	}

	offer, err := n.transport.CreateOffer()
	if err != nil {
		slog.Error("failed to create offer", "error", err, "peer_id", peerID)
		e.dropNegotiation(n)
		return false
	}

	msg, err := payload.NewOfferMessage(payload.SDPPayload{
		TargetParticipantID: peerID,
		Description:         offer,
	})
	if err != nil {
		e.dropNegotiation(n)
		return false
	}

	e.send(msg)

	return true
}

func (e *Engine) superviseOffer(peerID string, epoch uint64) {
	retry.Run(e.ctx, e.options.OfferRetry, func(attempt int) retry.Outcome {
		if !e.offerStalled(peerID, epoch) {
			return retry.Stop
		}

		slog.Warn("offer unanswered; renegotiating", "peer_id", peerID, "attempt", attempt+1)

		if !e.sendOffer(peerID) {
			return retry.Stop
		}

		return retry.Again
	})

	if e.offerStalled(peerID, epoch) {
		slog.Warn("offer attempts exhausted; leaving peer absent", "peer_id", peerID)
		if n := e.negotiation(peerID); n != nil && n.State() == StateOffering {
			e.dropNegotiation(n)
		}
	}
}

func (e *Engine) offerStalled(peerID string, epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.epochs[peerID] != epoch {
		return false
	}

	n := e.negotiations[peerID]
	return n != nil && n.State() == StateOffering
}

// handleOffer answers an incoming offer, tearing down any prior session for
// the peer first.
func (e *Engine) handleOffer(peerID string, desc webrtc.SessionDescription) {
	if peerID == "" {
		return
	}

	n, err := e.resetNegotiation(peerID, StateAnswering)
	if err != nil {
		slog.Error("failed to create peer transport", "error", err, "peer_id", peerID)
		return
	}

	if err := n.transport.SetRemoteDescription(desc); err != nil {
		slog.Error("failed to apply remote offer", "error", err, "peer_id", peerID)
		e.dropNegotiation(n)
		return
	}

	answer, err := n.transport.CreateAnswer()
	if err != nil {
		slog.Error("failed to create answer", "error", err, "peer_id", peerID)
		e.dropNegotiation(n)
		return
	}

	msg, err := payload.NewAnswerMessage(payload.SDPPayload{
		TargetParticipantID: peerID,
		Description:         answer,
	})
	if err != nil {
		e.dropNegotiation(n)
		return
	}

	e.send(msg)
	n.setState(StateConnected)
}

// handleAnswer applies the answer to the existing session. An answer for an
// already-torn-down session is a valid race outcome and is discarded.
func (e *Engine) handleAnswer(peerID string, desc webrtc.SessionDescription) {
	n := e.negotiation(peerID)
	if n == nil {
		slog.Debug("answer for unknown peer discarded", "peer_id", peerID)
		return
	}

	if err := n.transport.SetRemoteDescription(desc); err != nil {
		slog.Error("failed to apply remote answer", "error", err, "peer_id", peerID)
		e.dropNegotiation(n)
		return
	}

	n.setState(StateConnected)
}

// handleCandidate feeds a trickled candidate to the session. The transport
// queues candidates until its remote description lands; with no session at
// all the candidate is discarded.
func (e *Engine) handleCandidate(peerID string, candidate webrtc.ICECandidateInit) {
	n := e.negotiation(peerID)
	if n == nil {
		slog.Debug("candidate for unknown peer discarded", "peer_id", peerID)
		return
	}

	if err := n.transport.AddICECandidate(candidate); err != nil {
		slog.Warn("failed to add ice candidate", "error", err, "peer_id", peerID)
	}
}

// resetNegotiation installs a new session for the peer, closing any prior
// one first. At most one live transport per peer id exists at any time.
func (e *Engine) resetNegotiation(peerID string, state NegotiationState) (*Negotiation, error) {
	transport, err := e.factory()
	if err != nil {
		return nil, err
	}

	n := newNegotiation(peerID, transport, state)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		transport.Close()
		return nil, fmt.Errorf("engine is closed")
	}
	prior := e.negotiations[peerID]
	e.negotiations[peerID] = n
	e.mu.Unlock()

	if prior != nil {
		prior.close()
	}

	e.wireTransport(n)

	for _, track := range e.capture.Tracks() {
		if err := transport.AddTrack(track); err != nil {
			e.dropNegotiation(n)
			return nil, fmt.Errorf("failed to attach local track: %w", err)
		}
	}

	return n, nil
}

func (e *Engine) wireTransport(n *Negotiation) {
	peerID := n.peerID
	transport := n.transport

	transport.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		msg, err := payload.NewICECandidateMessage(payload.CandidatePayload{
			TargetParticipantID: peerID,
			Candidate:           candidate,
		})
		if err != nil {
			slog.Error("failed to build candidate message", "error", err)
			return
		}
		e.send(msg)
	})

	transport.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.handleTrack(n, track)
	})

	transport.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			n.setState(StateConnected)
		case webrtc.PeerConnectionStateFailed:
			slog.Warn("peer connection failed", "peer_id", peerID)
		}
	})

	debounced := debounce.New(e.options.RenegotiationDelay)
	transport.OnNegotiationNeeded(func() {
		debounced(func() {
			e.renegotiate(n)
		})
	})
}

// renegotiate restarts an established session, e.g. after local tracks
// changed. Only the offering side of the pair initiates, so renegotiation
// cannot glare either.
func (e *Engine) renegotiate(n *Negotiation) {
	if !ShouldOffer(e.selfID, n.peerID) {
		return
	}

	if e.negotiation(n.peerID) != n || n.State() != StateConnected {
		return
	}

	slog.Info("renegotiating peer", "peer_id", n.peerID)
	e.startOffer(n.peerID)
}

// handleTrack records the inbound media source in the remote stream table
// and starts draining it.
func (e *Engine) handleTrack(n *Negotiation, track *webrtc.TrackRemote) {
	peerID := n.peerID

	e.mu.Lock()
	if e.closed || e.negotiations[peerID] != n {
		e.mu.Unlock()
		return
	}

	stream, ok := e.streams[peerID]
	if !ok {
		stream = newRemoteStream(peerID, e.names[peerID])
		e.streams[peerID] = stream
	}
	counter := stream.addTrack(track)
	callback := e.onStreamChange
	e.mu.Unlock()

	n.setState(StateConnected)

	slog.Info("remote track received",
		slog.String("peer_id", peerID),
		slog.String("kind", track.Kind().String()),
	)

	if callback != nil {
		callback()
	}

	go readTrack(n.transport, track, counter)
}

// removePeer tears down everything held for a departed participant: the
// negotiation and the remote stream entry go in the same step.
func (e *Engine) removePeer(peerID string) {
	e.mu.Lock()
	n := e.negotiations[peerID]
	delete(e.negotiations, peerID)
	_, hadStream := e.streams[peerID]
	delete(e.streams, peerID)
	delete(e.names, peerID)
	delete(e.epochs, peerID)
	callback := e.onStreamChange
	e.mu.Unlock()

	if n != nil {
		n.close()
	}

	if hadStream && callback != nil {
		callback()
	}

	slog.Info("peer removed", "peer_id", peerID)
}

// setName records a display name, reconciling it into the stream table when
// media already arrived for the peer.
func (e *Engine) setName(peerID, name string) {
	if name == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.names[peerID] = name
	if stream, ok := e.streams[peerID]; ok {
		stream.mu.Lock()
		stream.name = name
		stream.mu.Unlock()
	}
}

// dropNegotiation removes the session and its remote stream entry, then
// closes the transport. The stream table never outlives the session that fed
// it. A replacement installed in the meantime is left untouched.
func (e *Engine) dropNegotiation(n *Negotiation) {
	var callback func()
	hadStream := false

	e.mu.Lock()
	if e.negotiations[n.peerID] == n {
		delete(e.negotiations, n.peerID)
		_, hadStream = e.streams[n.peerID]
		delete(e.streams, n.peerID)
		callback = e.onStreamChange
	}
	e.mu.Unlock()

	n.close()

	if hadStream && callback != nil {
		callback()
	}
}

func (e *Engine) negotiation(peerID string) *Negotiation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.negotiations[peerID]
}

// NegotiationState reports the state for a peer; ok is false when the peer
// is absent.
func (e *Engine) NegotiationState(peerID string) (NegotiationState, bool) {
	n := e.negotiation(peerID)
	if n == nil {
		return "", false
	}
	return n.State(), true
}

// Streams snapshots the remote stream table, ordered by peer id.
func (e *Engine) Streams() []StreamInfo {
	e.mu.Lock()
	streams := lo.Values(e.streams)
	e.mu.Unlock()

	infos := lo.Map(streams, func(s *remoteStream, _ int) StreamInfo {
		return s.snapshot()
	})

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].PeerID < infos[j].PeerID
	})

	return infos
}

func (e *Engine) bumpEpoch(peerID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epochs[peerID]++
	return e.epochs[peerID]
}

// send serializes outbound messages through a single worker so transmit
// order matches decision order. The submit happens under the lock: Close sets
// closed before stopping the pool, so no submit can reach a stopped pool.
func (e *Engine) send(msg *payload.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	e.sendPool.Submit(func() {
		if err := e.signaler.Send(e.ctx, msg); err != nil {
			slog.Warn("signaling send failed", "error", err, "type", string(msg.Type))
		}
	})
}

// Close releases every peer transport and the capture tracks. Runs on every
// exit path; safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	negotiations := lo.Values(e.negotiations)
	e.negotiations = make(map[string]*Negotiation)
	e.streams = make(map[string]*remoteStream)
	e.mu.Unlock()

	e.cancel()

	for _, n := range negotiations {
		n.close()
	}

	e.sendPool.StopWait()

	return e.capture.Close()
}
