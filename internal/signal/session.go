package signal

import "sync"

// Session is the per-connection state: the transport handle plus the identity
// bound by a successful join. A session belongs to exactly one room at a time.
type Session struct {
	mu            sync.RWMutex
	sender        Sender
	roomID        string
	participantID string
}

func NewSession(sender Sender) *Session {
	return &Session{sender: sender}
}

func (s *Session) Sender() Sender {
	return s.sender
}

// Bind records the identity established by join-room. Rebinding is allowed;
// a rejoin on the same connection simply replaces the identity.
func (s *Session) Bind(roomID, participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomID = roomID
	s.participantID = participantID
}

func (s *Session) Identity() (roomID, participantID string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID, s.participantID, s.participantID != ""
}
