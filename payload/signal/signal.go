package signal

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"
)

// MessageType discriminates every message that crosses the signaling channel.
type MessageType string

const (
	MessageTypeJoinRoom             MessageType = "join-room"
	MessageTypeJoinedRoom           MessageType = "joined-room"
	MessageTypeExistingParticipants MessageType = "existing-participants"
	MessageTypeParticipantJoined    MessageType = "participant-joined"
	MessageTypeParticipantLeft      MessageType = "participant-left"
	MessageTypeOffer                MessageType = "offer"
	MessageTypeAnswer               MessageType = "answer"
	MessageTypeICECandidate         MessageType = "ice-candidate"
	MessageTypeLeaveRoom            MessageType = "leave-room"
	MessageTypeError                MessageType = "error"
)

// Message is the envelope for all signaling traffic. Data holds the payload
// matching Type; the envelope itself is payload-agnostic.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func NewMessage(messageType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        xid.New().String(),
		Type:      messageType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

func NewJoinRoomMessage(p JoinRoomPayload) (*Message, error) {
	return NewMessage(MessageTypeJoinRoom, p)
}

func NewJoinedRoomMessage(p JoinedRoomPayload) (*Message, error) {
	return NewMessage(MessageTypeJoinedRoom, p)
}

func NewExistingParticipantsMessage(p ExistingParticipantsPayload) (*Message, error) {
	return NewMessage(MessageTypeExistingParticipants, p)
}

func NewParticipantJoinedMessage(p ParticipantJoinedPayload) (*Message, error) {
	return NewMessage(MessageTypeParticipantJoined, p)
}

func NewParticipantLeftMessage(p ParticipantLeftPayload) (*Message, error) {
	return NewMessage(MessageTypeParticipantLeft, p)
}

func NewOfferMessage(p SDPPayload) (*Message, error) {
	return NewMessage(MessageTypeOffer, p)
}

func NewAnswerMessage(p SDPPayload) (*Message, error) {
	return NewMessage(MessageTypeAnswer, p)
}

func NewICECandidateMessage(p CandidatePayload) (*Message, error) {
	return NewMessage(MessageTypeICECandidate, p)
}

func NewLeaveRoomMessage() (*Message, error) {
	return NewMessage(MessageTypeLeaveRoom, struct{}{})
}

func NewErrorMessage(message string) (*Message, error) {
	return NewMessage(MessageTypeError, ErrorPayload{Message: message})
}
