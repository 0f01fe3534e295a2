package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// Sender queues outbound frames for a single websocket connection. All writes
// go through one pump goroutine; the gorilla connection does not allow
// concurrent writers.
type Sender interface {
	// Send queues a message. Returns an error if the sender is closed or the
	// buffer is full.
	Send(ctx context.Context, message []byte) error
	// Start launches the write pump.
	Start(ctx context.Context)
	// Close shuts the sender down. Safe to call more than once.
	Close() error
}

type SenderOptions struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	BufferSize   int
}

func DefaultSenderOptions() SenderOptions {
	return SenderOptions{
		WriteTimeout: 10 * time.Second,
		PingInterval: 15 * time.Second,
		BufferSize:   256,
	}
}

type WebSocketSender struct {
	ctx      context.Context
	cancel   context.CancelFunc
	conn     *ws.Conn
	options  SenderOptions
	sendChan chan []byte
	mu       sync.Mutex
	closed   bool
}

var _ Sender = (*WebSocketSender)(nil)

func NewWebSocketSender(ctx context.Context, conn *ws.Conn, options SenderOptions) *WebSocketSender {
	ctx, cancel := context.WithCancel(ctx)

	if options.PingInterval <= 0 {
		options.PingInterval = DefaultSenderOptions().PingInterval
	}

	return &WebSocketSender{
		ctx:      ctx,
		cancel:   cancel,
		conn:     conn,
		options:  options,
		sendChan: make(chan []byte, options.BufferSize),
	}
}

// Send runs entirely under the mutex so it cannot interleave with Close
// between the closed check and the channel send; the push is non-blocking.
func (s *WebSocketSender) Send(ctx context.Context, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("sender is closed")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return errors.New("sender context done")
	case s.sendChan <- message:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (s *WebSocketSender) Start(ctx context.Context) {
	go s.writePump(ctx)
}

func (s *WebSocketSender) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	close(s.sendChan)

	return nil
}

func (s *WebSocketSender) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			return
		case message, ok := <-s.sendChan:
			s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if !ok {
				s.conn.WriteMessage(ws.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(ws.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if err := s.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
