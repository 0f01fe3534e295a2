package room

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/HMasataka/huddle/payload/signal"
	"github.com/samber/lo"
)

var (
	// ErrSenderNotJoined relay was attempted before a successful join
	ErrSenderNotJoined = errors.New("sender has not joined a room")
	// ErrTargetNotFound relay target is not a member of the sender's room
	ErrTargetNotFound = errors.New("target participant not found in room")
	// ErrBadPayload relay payload could not be decoded
	ErrBadPayload = errors.New("malformed relay payload")
)

type RegistryOptions struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

func DefaultRegistryOptions() RegistryOptions {
	return RegistryOptions{
		IdleTimeout:   30 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// Registry owns every room and the transport-to-participant lookup. It is
// constructed once and injected into the router; all membership mutation goes
// through it.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	byConn  map[Sender]*Participant
	options RegistryOptions
}

func NewRegistry(options RegistryOptions) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		byConn:  make(map[Sender]*Participant),
		options: options,
	}
}

// Join inserts the participant, creating the room on first use, and notifies
// existing members. A duplicate participant id silently replaces the prior
// entry; ids are generated per session so collisions mean a stale record.
// It returns the other members present at this instant and the new room size.
func (r *Registry) Join(ctx context.Context, roomID, participantID, name string, sender Sender) ([]signal.ParticipantInfo, int) {
	p := &Participant{
		ID:     participantID,
		Name:   name,
		RoomID: roomID,
		sender: sender,
	}

	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = newRoom(roomID)
		r.rooms[roomID] = rm
	}

	if prior, ok := rm.participants[participantID]; ok {
		delete(r.byConn, prior.sender)
	}

	rm.add(p)
	r.byConn[sender] = p

	others := rm.others(participantID)
	count := rm.size()
	r.mu.Unlock()

	msg, err := signal.NewParticipantJoinedMessage(signal.ParticipantJoinedPayload{
		ParticipantID:    participantID,
		Name:             name,
		ParticipantCount: count,
	})
	if err != nil {
		slog.Error("failed to build participant-joined message", "error", err)
		return participantInfos(others), count
	}

	r.broadcast(ctx, msg, others)

	return participantInfos(others), count
}

// Leave removes the participant owning the transport and notifies the
// remaining members. It is a no-op when the transport never joined, which
// covers disconnects that happen before any join-room message.
func (r *Registry) Leave(ctx context.Context, sender Sender) (roomID, participantID string, count int, ok bool) {
	r.mu.Lock()
	p, found := r.byConn[sender]
	if !found {
		r.mu.Unlock()
		return "", "", 0, false
	}

	delete(r.byConn, sender)

	var remaining []*Participant
	rm, roomFound := r.rooms[p.RoomID]
	if roomFound {
		rm.remove(p.ID)
		remaining = rm.others(p.ID)
		count = rm.size()
	}
	r.mu.Unlock()

	msg, err := signal.NewParticipantLeftMessage(signal.ParticipantLeftPayload{
		ParticipantID:    p.ID,
		ParticipantCount: count,
	})
	if err != nil {
		slog.Error("failed to build participant-left message", "error", err)
		return p.RoomID, p.ID, count, true
	}

	r.broadcast(ctx, msg, remaining)

	return p.RoomID, p.ID, count, true
}

// Relay forwards an offer, answer or candidate to the target named in the
// payload. The sender's participant id is stamped into the payload so the
// receiver knows which mesh edge the message belongs to; the SDP or candidate
// body itself is never inspected.
func (r *Registry) Relay(ctx context.Context, sender Sender, msg *signal.Message) error {
	r.mu.RLock()
	from, ok := r.byConn[sender]
	if !ok {
		r.mu.RUnlock()
		return ErrSenderNotJoined
	}
	rm, ok := r.rooms[from.RoomID]
	if !ok {
		r.mu.RUnlock()
		return ErrSenderNotJoined
	}
	r.mu.RUnlock()

	forwarded, targetID, err := stampSender(msg, from.ID)
	if err != nil {
		return err
	}

	r.mu.RLock()
	target, ok := rm.participants[targetID]
	r.mu.RUnlock()
	if !ok {
		return ErrTargetNotFound
	}

	data, err := json.Marshal(forwarded)
	if err != nil {
		return err
	}

	if err := target.sender.Send(ctx, data); err != nil {
		return errors.Join(ErrTargetNotFound, err)
	}

	return nil
}

// Sweep removes rooms that have been empty past the idle timeout and returns
// how many were collected. Rooms with members are never removed.
func (r *Registry) Sweep() int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rm := range r.rooms {
		if rm.expired(r.options.IdleTimeout, now) {
			delete(r.rooms, id)
			removed++
		}
	}

	return removed
}

// Run sweeps periodically until the context is cancelled. This is the only
// garbage collection for abandoned rooms.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.options.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := r.Sweep(); removed > 0 {
				slog.Info("swept idle rooms", "removed", removed)
			}
		}
	}
}

// RoomCount reports the number of live rooms, for health reporting.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// broadcast fans a message out to the given members. Membership was already
// snapshotted under the lock; sends happen outside any critical section. A
// failed send only skips that member.
func (r *Registry) broadcast(ctx context.Context, msg *signal.Message, members []*Participant) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal broadcast message", "error", err, "type", string(msg.Type))
		return
	}

	for _, member := range members {
		if err := member.sender.Send(ctx, data); err != nil {
			slog.Warn("broadcast send failed", "error", err, "participant_id", member.ID)
		}
	}
}

// stampSender rewrites the relay payload with the sender's id and extracts the
// target id. Only the envelope fields are touched.
func stampSender(msg *signal.Message, fromID string) (*signal.Message, string, error) {
	forwarded := *msg

	switch msg.Type {
	case signal.MessageTypeOffer, signal.MessageTypeAnswer:
		var p signal.SDPPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, "", errors.Join(ErrBadPayload, err)
		}
		targetID := p.TargetParticipantID
		p.FromParticipantID = fromID
		data, err := json.Marshal(p)
		if err != nil {
			return nil, "", err
		}
		forwarded.Data = data
		return &forwarded, targetID, nil
	case signal.MessageTypeICECandidate:
		var p signal.CandidatePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, "", errors.Join(ErrBadPayload, err)
		}
		targetID := p.TargetParticipantID
		p.FromParticipantID = fromID
		data, err := json.Marshal(p)
		if err != nil {
			return nil, "", err
		}
		forwarded.Data = data
		return &forwarded, targetID, nil
	default:
		return nil, "", ErrBadPayload
	}
}

func participantInfos(participants []*Participant) []signal.ParticipantInfo {
	return lo.Map(participants, func(p *Participant, _ int) signal.ParticipantInfo {
		return p.Info()
	})
}
