package signal

import "github.com/pion/webrtc/v4"

type JoinRoomPayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name,omitempty"`
}

type JoinedRoomPayload struct {
	RoomID           string `json:"room_id"`
	ParticipantID    string `json:"participant_id"`
	ParticipantCount int    `json:"participant_count"`
}

// ParticipantInfo describes one room member for discovery purposes.
type ParticipantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ExistingParticipantsPayload struct {
	Participants []ParticipantInfo `json:"participants"`
}

type ParticipantJoinedPayload struct {
	ParticipantID    string `json:"participant_id"`
	Name             string `json:"name,omitempty"`
	ParticipantCount int    `json:"participant_count"`
}

type ParticipantLeftPayload struct {
	ParticipantID    string `json:"participant_id"`
	ParticipantCount int    `json:"participant_count"`
}

// SDPPayload carries an offer or answer between two participants. The server
// rewrites FromParticipantID on relay and never inspects Description.
type SDPPayload struct {
	TargetParticipantID string                    `json:"target_participant_id,omitempty"`
	FromParticipantID   string                    `json:"from_participant_id,omitempty"`
	Description         webrtc.SessionDescription `json:"description"`
}

// CandidatePayload carries one trickled ICE candidate between two participants.
type CandidatePayload struct {
	TargetParticipantID string                  `json:"target_participant_id,omitempty"`
	FromParticipantID   string                  `json:"from_participant_id,omitempty"`
	Candidate           webrtc.ICECandidateInit `json:"candidate"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
