package signal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	payload "github.com/HMasataka/huddle/payload/signal"
	ws "github.com/gorilla/websocket"
)

type ConnectionOptions struct {
	ReadTimeout    time.Duration
	MaxMessageSize int64
}

func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		ReadTimeout:    90 * time.Second,
		MaxMessageSize: 512 * 1024, // 512KB
	}
}

// Connection drives the read side of one signaling websocket. Every inbound
// message is routed to completion before the next one is read, so handlers
// observe per-connection serial semantics.
type Connection struct {
	ctx     context.Context
	cancel  context.CancelFunc
	conn    *ws.Conn
	session *Session
	router  *Router
	options ConnectionOptions
	mu      sync.Mutex
	closed  bool
}

func NewConnection(ctx context.Context, conn *ws.Conn, session *Session, router *Router, options ConnectionOptions) *Connection {
	ctx, cancel := context.WithCancel(ctx)

	return &Connection{
		ctx:     ctx,
		cancel:  cancel,
		conn:    conn,
		session: session,
		router:  router,
		options: options,
	}
}

func (c *Connection) Session() *Session {
	return c.session
}

func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	if err := c.session.Sender().Close(); err != nil {
		slog.Warn("sender close failed", "error", err)
	}

	return c.conn.Close()
}

// Start runs the sender pump and the read pump. It blocks until the
// connection is closed by either side.
func (c *Connection) Start(ctx context.Context) {
	c.session.Sender().Start(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(c.options.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ctx.Done():
			return
		default:
		}

		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if messageType != ws.TextMessage && messageType != ws.BinaryMessage {
			continue
		}

		var msg payload.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("failed to unmarshal signaling message", "error", err)
			c.replyError(ctx, "malformed message")
			continue
		}

		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}

		response, err := c.router.Handle(ctx, c.session, &msg)
		if err != nil {
			slog.Warn("message handling failed", "error", err, "type", string(msg.Type))
			c.replyError(ctx, err.Error())
			continue
		}

		if response != nil {
			c.reply(ctx, response)
		}
	}
}

func (c *Connection) reply(ctx context.Context, msg *payload.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal reply", "error", err, "type", string(msg.Type))
		return
	}

	if err := c.session.Sender().Send(ctx, data); err != nil {
		slog.Warn("reply send failed", "error", err, "type", string(msg.Type))
	}
}

// replyError reports a per-message failure to the sender. The connection
// stays open; failures are contained to the message that caused them.
func (c *Connection) replyError(ctx context.Context, message string) {
	msg, err := payload.NewErrorMessage(message)
	if err != nil {
		return
	}

	c.reply(ctx, msg)
}
