package room

import (
	"context"
	"time"

	"github.com/HMasataka/huddle/payload/signal"
	"github.com/samber/lo"
)

// Sender is the transport handle owned by a participant. It is satisfied by
// the websocket sender but kept minimal so the registry never touches IO
// details directly.
type Sender interface {
	Send(ctx context.Context, message []byte) error
}

// Participant is one connected session. The id is ephemeral per connection;
// rejoining produces a new Participant.
type Participant struct {
	ID     string
	Name   string
	RoomID string
	sender Sender
}

func (p *Participant) Info() signal.ParticipantInfo {
	return signal.ParticipantInfo{ID: p.ID, Name: p.Name}
}

// Room groups the participants that should mesh-connect with each other.
// A drained room is kept around for IdleTimeout so late reconnects can reuse
// the id before the sweeper collects it.
type Room struct {
	ID           string
	CreatedAt    time.Time
	participants map[string]*Participant
	emptySince   time.Time
}

func newRoom(id string) *Room {
	return &Room{
		ID:           id,
		CreatedAt:    time.Now(),
		participants: make(map[string]*Participant),
	}
}

func (r *Room) add(p *Participant) {
	r.participants[p.ID] = p
	r.emptySince = time.Time{}
}

func (r *Room) remove(id string) {
	delete(r.participants, id)
	if len(r.participants) == 0 {
		r.emptySince = time.Now()
	}
}

func (r *Room) size() int {
	return len(r.participants)
}

// others returns every member except the given id.
func (r *Room) others(id string) []*Participant {
	return lo.Filter(lo.Values(r.participants), func(p *Participant, _ int) bool {
		return p.ID != id
	})
}

func (r *Room) expired(idleTimeout time.Duration, now time.Time) bool {
	if len(r.participants) > 0 {
		return false
	}
	if r.emptySince.IsZero() {
		return false
	}
	return now.Sub(r.emptySince) > idleTimeout
}
