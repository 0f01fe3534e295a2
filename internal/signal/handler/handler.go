package handler

import (
	"context"

	"github.com/HMasataka/huddle/internal/room"
	internalsignal "github.com/HMasataka/huddle/internal/signal"
	payload "github.com/HMasataka/huddle/payload/signal"
)

//go:generate mockgen -source handler.go -destination ../mock/room_service.go -package mock

// RoomService is the registry surface the signaling handlers need. Satisfied
// by room.Registry.
type RoomService interface {
	Join(ctx context.Context, roomID, participantID, name string, sender room.Sender) ([]payload.ParticipantInfo, int)
	Leave(ctx context.Context, sender room.Sender) (roomID, participantID string, count int, ok bool)
	Relay(ctx context.Context, sender room.Sender, msg *payload.Message) error
}

// NewSignalingRouter wires one handler per message kind a client may send.
// Server-originated kinds have no inbound handler on purpose; receiving one
// is reported as an unknown type.
func NewSignalingRouter(rooms RoomService) *internalsignal.Router {
	router := internalsignal.NewRouter()

	router.Register(payload.MessageTypeJoinRoom, NewJoinHandler(rooms))

	relay := NewRelayHandler(rooms)
	router.Register(payload.MessageTypeOffer, relay)
	router.Register(payload.MessageTypeAnswer, relay)
	router.Register(payload.MessageTypeICECandidate, relay)

	router.Register(payload.MessageTypeLeaveRoom, NewLeaveHandler(rooms))

	return router
}
