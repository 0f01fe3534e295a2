package handler

import (
	"context"

	internalsignal "github.com/HMasataka/huddle/internal/signal"
	payload "github.com/HMasataka/huddle/payload/signal"
)

// RelayHandler forwards offer, answer and ice-candidate messages to the
// target named in the payload. The handler never inspects SDP or candidate
// contents; the peer transport on the receiving side is the arbiter of
// validity.
type RelayHandler struct {
	rooms RoomService
}

func NewRelayHandler(rooms RoomService) *RelayHandler {
	return &RelayHandler{rooms: rooms}
}

func (h *RelayHandler) Handle(ctx context.Context, sess *internalsignal.Session, msg *payload.Message) (*payload.Message, error) {
	if err := h.rooms.Relay(ctx, sess.Sender(), msg); err != nil {
		return nil, err
	}

	return nil, nil
}
