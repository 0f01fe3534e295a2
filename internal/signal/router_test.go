package signal_test

import (
	"context"
	"testing"

	internalsignal "github.com/HMasataka/huddle/internal/signal"
	payload "github.com/HMasataka/huddle/payload/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSender struct{}

func (nopSender) Send(ctx context.Context, message []byte) error { return nil }
func (nopSender) Start(ctx context.Context)                      {}
func (nopSender) Close() error                                   { return nil }

func TestRouter_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("登録済みの種別はハンドラに届く", func(t *testing.T) {
		router := internalsignal.NewRouter()

		var got payload.MessageType
		router.Register(payload.MessageTypeLeaveRoom, internalsignal.HandlerFunc(
			func(ctx context.Context, sess *internalsignal.Session, msg *payload.Message) (*payload.Message, error) {
				got = msg.Type
				return nil, nil
			},
		))

		msg, err := payload.NewLeaveRoomMessage()
		require.NoError(t, err)

		sess := internalsignal.NewSession(nopSender{})
		_, err = router.Handle(ctx, sess, msg)
		require.NoError(t, err)
		assert.Equal(t, payload.MessageTypeLeaveRoom, got)
	})

	t.Run("未登録の種別はエラー", func(t *testing.T) {
		router := internalsignal.NewRouter()

		msg, err := payload.NewErrorMessage("boom")
		require.NoError(t, err)

		sess := internalsignal.NewSession(nopSender{})
		_, err = router.Handle(ctx, sess, msg)
		assert.ErrorIs(t, err, internalsignal.ErrUnknownMessageType)
	})

	t.Run("nilメッセージはエラー", func(t *testing.T) {
		router := internalsignal.NewRouter()

		sess := internalsignal.NewSession(nopSender{})
		_, err := router.Handle(ctx, sess, nil)
		assert.Error(t, err)
	})
}

func TestSession_Bind(t *testing.T) {
	sess := internalsignal.NewSession(nopSender{})

	_, _, ok := sess.Identity()
	assert.False(t, ok)

	sess.Bind("r1", "p1")

	roomID, participantID, ok := sess.Identity()
	require.True(t, ok)
	assert.Equal(t, "r1", roomID)
	assert.Equal(t, "p1", participantID)

	// Rejoin on the same connection replaces the identity.
	sess.Bind("r2", "p2")

	roomID, participantID, _ = sess.Identity()
	assert.Equal(t, "r2", roomID)
	assert.Equal(t, "p2", participantID)
}
