package handler

import (
	"context"
	"log/slog"

	internalsignal "github.com/HMasataka/huddle/internal/signal"
	payload "github.com/HMasataka/huddle/payload/signal"
)

type LeaveHandler struct {
	rooms RoomService
}

func NewLeaveHandler(rooms RoomService) *LeaveHandler {
	return &LeaveHandler{rooms: rooms}
}

// Handle removes the participant from its room. A leave before any join is a
// no-op, not an error; disconnect-level cleanup takes the same path.
func (h *LeaveHandler) Handle(ctx context.Context, sess *internalsignal.Session, msg *payload.Message) (*payload.Message, error) {
	roomID, participantID, count, ok := h.rooms.Leave(ctx, sess.Sender())
	if !ok {
		return nil, nil
	}

	slog.Info("participant left",
		slog.String("room_id", roomID),
		slog.String("participant_id", participantID),
		slog.Int("participant_count", count),
	)

	return nil, nil
}
