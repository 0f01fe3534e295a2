package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/HMasataka/huddle/internal/room"
	internalsignal "github.com/HMasataka/huddle/internal/signal"
	"github.com/HMasataka/huddle/internal/signal/handler"
	ws "github.com/gorilla/websocket"
)

type Options struct {
	Connection internalsignal.ConnectionOptions
	Sender     internalsignal.SenderOptions
}

func DefaultOptions() Options {
	return Options{
		Connection: internalsignal.DefaultConnectionOptions(),
		Sender:     internalsignal.DefaultSenderOptions(),
	}
}

// Server accepts signaling websockets and binds each one to the shared room
// registry through the router.
type Server struct {
	registry *room.Registry
	router   *internalsignal.Router
	upgrader ws.Upgrader
	options  Options
}

func New(registry *room.Registry, options Options) *Server {
	return &Server{
		registry: registry,
		router:   handler.NewSignalingRouter(registry),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		options: options,
	}
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. Whatever the exit path, the participant is removed from its room so
// the remaining members learn about the departure.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	ctx := r.Context()

	sender := internalsignal.NewWebSocketSender(ctx, conn, s.options.Sender)
	session := internalsignal.NewSession(sender)
	connection := internalsignal.NewConnection(ctx, conn, session, s.router, s.options.Connection)

	slog.Info("signaling connection opened", "remote_addr", r.RemoteAddr)

	connection.Start(ctx)

	// Read pump exited: explicit leave-room already ran, or the socket died.
	// Leave is a no-op in the former case.
	if roomID, participantID, _, ok := s.registry.Leave(context.WithoutCancel(ctx), sender); ok {
		slog.Info("signaling connection closed",
			slog.String("room_id", roomID),
			slog.String("participant_id", participantID),
		)
	}
}

// HandleHealth reports liveness plus the current room count.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","rooms":%d}`, s.registry.RoomCount())
}

// Routes registers the server's endpoints on the given mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/health", s.HandleHealth)
}
