package signal

import (
	"context"
	"errors"

	payload "github.com/HMasataka/huddle/payload/signal"
)

// ErrUnknownMessageType the message carried a type no handler is registered
// for. Reported back to the sender, never fatal to the connection.
var ErrUnknownMessageType = errors.New("unknown message type")

type Handler interface {
	Handle(ctx context.Context, sess *Session, msg *payload.Message) (*payload.Message, error)
}

type HandlerFunc func(ctx context.Context, sess *Session, msg *payload.Message) (*payload.Message, error)

func (f HandlerFunc) Handle(ctx context.Context, sess *Session, msg *payload.Message) (*payload.Message, error) {
	return f(ctx, sess, msg)
}

// Router dispatches inbound messages by type. The optional response is sent
// back to the originating session by the connection.
type Router struct {
	handlers map[payload.MessageType]Handler
}

func NewRouter() *Router {
	return &Router{
		handlers: make(map[payload.MessageType]Handler),
	}
}

func (r *Router) Register(messageType payload.MessageType, handler Handler) {
	r.handlers[messageType] = handler
}

func (r *Router) Handle(ctx context.Context, sess *Session, msg *payload.Message) (*payload.Message, error) {
	if msg == nil {
		return nil, errors.New("message is nil")
	}

	handler, ok := r.handlers[msg.Type]
	if !ok || handler == nil {
		return nil, ErrUnknownMessageType
	}

	return handler.Handle(ctx, sess, msg)
}
