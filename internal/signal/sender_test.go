package signal_test

import (
	"context"
	"sync"
	"testing"

	internalsignal "github.com/HMasataka/huddle/internal/signal"
	"github.com/stretchr/testify/assert"
)

func TestWebSocketSender_SendCloseRace(t *testing.T) {
	t.Run("Closeと並行のSendでも落ちない", func(t *testing.T) {
		ctx := context.Background()

		for i := 0; i < 100; i++ {
			sender := internalsignal.NewWebSocketSender(ctx, nil, internalsignal.SenderOptions{
				BufferSize: 4,
			})

			var wg sync.WaitGroup
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						sender.Send(ctx, []byte("x"))
					}
				}()
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				sender.Close()
			}()

			wg.Wait()
		}
	})

	t.Run("Close後のSendはエラー", func(t *testing.T) {
		ctx := context.Background()
		sender := internalsignal.NewWebSocketSender(ctx, nil, internalsignal.DefaultSenderOptions())

		assert.NoError(t, sender.Close())
		assert.NoError(t, sender.Close())

		assert.Error(t, sender.Send(ctx, []byte("x")))
	})
}
