package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	internalsignal "github.com/HMasataka/huddle/internal/signal"
	payload "github.com/HMasataka/huddle/payload/signal"
	"github.com/HMasataka/logging"
)

type JoinHandler struct {
	rooms RoomService
}

func NewJoinHandler(rooms RoomService) *JoinHandler {
	return &JoinHandler{rooms: rooms}
}

// Handle registers the participant and tells it who is already present.
// The joiner receives joined-room followed by existing-participants; everyone
// else in the room gets participant-joined from the registry broadcast.
func (h *JoinHandler) Handle(ctx context.Context, sess *internalsignal.Session, msg *payload.Message) (*payload.Message, error) {
	var req payload.JoinRoomPayload
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, errors.New("malformed join-room payload")
	}

	if req.RoomID == "" || req.ParticipantID == "" {
		return nil, errors.New("join-room requires room_id and participant_id")
	}

	others, count := h.rooms.Join(ctx, req.RoomID, req.ParticipantID, req.Name, sess.Sender())
	sess.Bind(req.RoomID, req.ParticipantID)

	joined, err := payload.NewJoinedRoomMessage(payload.JoinedRoomPayload{
		RoomID:           req.RoomID,
		ParticipantID:    req.ParticipantID,
		ParticipantCount: count,
	})
	if err != nil {
		return nil, err
	}

	if err := h.send(ctx, sess, joined); err != nil {
		return nil, err
	}

	existing, err := payload.NewExistingParticipantsMessage(payload.ExistingParticipantsPayload{
		Participants: others,
	})
	if err != nil {
		return nil, err
	}

	if err := h.send(ctx, sess, existing); err != nil {
		return nil, err
	}

	if logging.HasLoggingContext(ctx) {
		slog.InfoContext(ctx, "participant joined",
			slog.String("room_id", req.RoomID),
			slog.String("participant_id", req.ParticipantID),
			slog.Int("participant_count", count),
		)
	}

	return nil, nil
}

func (h *JoinHandler) send(ctx context.Context, sess *internalsignal.Session, msg *payload.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return sess.Sender().Send(ctx, data)
}
