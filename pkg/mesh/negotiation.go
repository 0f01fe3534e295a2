package mesh

import "sync"

// NegotiationState tracks where one per-peer session stands. absent is
// modeled by the negotiation not existing in the engine's table.
type NegotiationState string

const (
	StateOffering  NegotiationState = "offering"
	StateAnswering NegotiationState = "answering"
	StateConnected NegotiationState = "connected"
	StateClosed    NegotiationState = "closed"
)

// Negotiation is one live session toward a remote peer. At most one exists
// per peer id; creating a replacement always closes its predecessor first.
type Negotiation struct {
	mu        sync.Mutex
	peerID    string
	state     NegotiationState
	transport Transport
}

func newNegotiation(peerID string, transport Transport, state NegotiationState) *Negotiation {
	return &Negotiation{
		peerID:    peerID,
		state:     state,
		transport: transport,
	}
}

func (n *Negotiation) PeerID() string {
	return n.peerID
}

func (n *Negotiation) State() NegotiationState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Negotiation) setState(state NegotiationState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateClosed {
		return
	}
	n.state = state
}

// close tears the transport down and pins the state. Idempotent.
func (n *Negotiation) close() {
	n.mu.Lock()
	if n.state == StateClosed {
		n.mu.Unlock()
		return
	}
	n.state = StateClosed
	transport := n.transport
	n.mu.Unlock()

	if transport != nil {
		transport.Close()
	}
}
