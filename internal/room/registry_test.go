package room_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/huddle/internal/room"
	"github.com/HMasataka/huddle/payload/signal"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []*signal.Message
}

func (s *fakeSender) Send(ctx context.Context, data []byte) error {
	var msg signal.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, &msg)
	return nil
}

func (s *fakeSender) byType(messageType signal.MessageType) []*signal.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*signal.Message
	for _, msg := range s.messages {
		if msg.Type == messageType {
			out = append(out, msg)
		}
	}
	return out
}

func newRegistry(idleTimeout time.Duration) *room.Registry {
	return room.NewRegistry(room.RegistryOptions{
		IdleTimeout:   idleTimeout,
		SweepInterval: time.Minute,
	})
}

func TestRegistry_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("N番目の参加者はN-1人のスナップショットを受け取る", func(t *testing.T) {
		registry := newRegistry(time.Hour)

		others, count := registry.Join(ctx, "r1", "p1", "alice", &fakeSender{})
		assert.Empty(t, others)
		assert.Equal(t, 1, count)

		others, count = registry.Join(ctx, "r1", "p2", "bob", &fakeSender{})
		require.Len(t, others, 1)
		assert.Equal(t, "p1", others[0].ID)
		assert.Equal(t, "alice", others[0].Name)
		assert.Equal(t, 2, count)

		others, count = registry.Join(ctx, "r1", "p3", "", &fakeSender{})
		assert.Len(t, others, 2)
		assert.Equal(t, 3, count)
	})

	t.Run("既存メンバーにparticipant-joinedが配信される", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		first := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "alice", first)
		registry.Join(ctx, "r1", "p2", "bob", &fakeSender{})

		joined := first.byType(signal.MessageTypeParticipantJoined)
		require.Len(t, joined, 1)

		var p signal.ParticipantJoinedPayload
		require.NoError(t, json.Unmarshal(joined[0].Data, &p))
		assert.Equal(t, "p2", p.ParticipantID)
		assert.Equal(t, "bob", p.Name)
		assert.Equal(t, 2, p.ParticipantCount)
	})

	t.Run("重複IDは古いエントリを置き換える", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		old := &fakeSender{}
		replacement := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "alice", old)
		others, count := registry.Join(ctx, "r1", "p1", "alice", replacement)

		assert.Empty(t, others)
		assert.Equal(t, 1, count)

		// The old transport no longer owns a participant.
		_, _, _, ok := registry.Leave(ctx, old)
		assert.False(t, ok)
	})

	t.Run("別ルームのメンバーには配信されない", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		other := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "", other)
		registry.Join(ctx, "r2", "p2", "", &fakeSender{})

		assert.Empty(t, other.byType(signal.MessageTypeParticipantJoined))
	})
}

func TestRegistry_Leave(t *testing.T) {
	ctx := context.Background()

	t.Run("残りのメンバーにparticipant-leftが配信される", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		stayer := &fakeSender{}
		leaver := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "", stayer)
		registry.Join(ctx, "r1", "p2", "", leaver)

		roomID, participantID, count, ok := registry.Leave(ctx, leaver)
		require.True(t, ok)
		assert.Equal(t, "r1", roomID)
		assert.Equal(t, "p2", participantID)
		assert.Equal(t, 1, count)

		left := stayer.byType(signal.MessageTypeParticipantLeft)
		require.Len(t, left, 1)

		var p signal.ParticipantLeftPayload
		require.NoError(t, json.Unmarshal(left[0].Data, &p))
		assert.Equal(t, "p2", p.ParticipantID)
		assert.Equal(t, 1, p.ParticipantCount)
	})

	t.Run("未参加のトランスポートはno-op", func(t *testing.T) {
		registry := newRegistry(time.Hour)

		_, _, _, ok := registry.Leave(ctx, &fakeSender{})
		assert.False(t, ok)
	})
}

func TestRegistry_Relay(t *testing.T) {
	ctx := context.Background()

	offerTo := func(t *testing.T, target string) *signal.Message {
		t.Helper()
		msg, err := signal.NewOfferMessage(signal.SDPPayload{
			TargetParticipantID: target,
			Description: webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer,
				SDP:  "v=0",
			},
		})
		require.NoError(t, err)
		return msg
	}

	t.Run("送信者IDを付与して転送する", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		from := &fakeSender{}
		to := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "", from)
		registry.Join(ctx, "r1", "p2", "", to)

		require.NoError(t, registry.Relay(ctx, from, offerTo(t, "p2")))

		offers := to.byType(signal.MessageTypeOffer)
		require.Len(t, offers, 1)

		var p signal.SDPPayload
		require.NoError(t, json.Unmarshal(offers[0].Data, &p))
		assert.Equal(t, "p1", p.FromParticipantID)
		assert.Equal(t, "v=0", p.Description.SDP)
	})

	t.Run("未参加の送信者はエラー", func(t *testing.T) {
		registry := newRegistry(time.Hour)

		err := registry.Relay(ctx, &fakeSender{}, offerTo(t, "p2"))
		assert.ErrorIs(t, err, room.ErrSenderNotJoined)
	})

	t.Run("宛先が見つからない場合はエラー", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		from := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "", from)

		err := registry.Relay(ctx, from, offerTo(t, "missing"))
		assert.ErrorIs(t, err, room.ErrTargetNotFound)
	})

	t.Run("別ルームの参加者には転送できない", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		from := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "", from)
		registry.Join(ctx, "r2", "p2", "", &fakeSender{})

		err := registry.Relay(ctx, from, offerTo(t, "p2"))
		assert.ErrorIs(t, err, room.ErrTargetNotFound)
	})

	t.Run("転送できない種別はエラー", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		from := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "", from)

		msg, err := signal.NewLeaveRoomMessage()
		require.NoError(t, err)

		err = registry.Relay(ctx, from, msg)
		assert.ErrorIs(t, err, room.ErrBadPayload)
	})
}

func TestRegistry_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("閾値を超えた空ルームは回収される", func(t *testing.T) {
		registry := newRegistry(10 * time.Millisecond)
		sender := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "", sender)
		registry.Leave(ctx, sender)

		time.Sleep(30 * time.Millisecond)

		assert.Equal(t, 1, registry.Sweep())
		assert.Equal(t, 0, registry.RoomCount())
	})

	t.Run("参加者のいるルームは回収されない", func(t *testing.T) {
		registry := newRegistry(0)

		registry.Join(ctx, "r1", "p1", "", &fakeSender{})

		time.Sleep(5 * time.Millisecond)

		assert.Equal(t, 0, registry.Sweep())
		assert.Equal(t, 1, registry.RoomCount())
	})

	t.Run("猶予期間内の空ルームは残る", func(t *testing.T) {
		registry := newRegistry(time.Hour)
		sender := &fakeSender{}

		registry.Join(ctx, "r1", "p1", "", sender)
		registry.Leave(ctx, sender)

		assert.Equal(t, 0, registry.Sweep())
		assert.Equal(t, 1, registry.RoomCount())
	})
}
