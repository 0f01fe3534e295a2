package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/HMasataka/huddle/internal/config"
	payload "github.com/HMasataka/huddle/payload/signal"
	"github.com/HMasataka/huddle/pkg/mesh"
	"github.com/HMasataka/huddle/pkg/rtc"
	ws "github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/xid"
)

// wsSignaler sends engine messages over the signaling websocket. Writes are
// serialized; gorilla connections do not allow concurrent writers.
type wsSignaler struct {
	mu   sync.Mutex
	conn *ws.Conn
}

func (s *wsSignaler) Send(ctx context.Context, msg *payload.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(ws.TextMessage, data)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	serverURL := flag.String("server", "ws://localhost:8080/ws", "signaling server url")
	roomID := flag.String("room", "", "room id to join")
	name := flag.String("name", "", "display name")
	audio := flag.Bool("audio", true, "publish an audio track")
	video := flag.Bool("video", true, "publish a video track")
	configPath := flag.String("config", "", "path to toml config")
	flag.Parse()

	if *roomID == "" {
		slog.Error("room id is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Room ids are case-normalized on the client side.
	room := strings.ToLower(*roomID)
	selfID := xid.New().String()

	conn, _, err := ws.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		slog.Error("failed to dial signaling server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	capture, err := mesh.NewStaticCapture(*audio, *video)
	if err != nil {
		slog.Error("failed to acquire local media", slog.String("error", err.Error()))
		os.Exit(1)
	}

	signaler := &wsSignaler{conn: conn}
	factory := mesh.NewTransportFactory(rtcOptions(cfg.WebRTC))

	engine := mesh.NewEngine(selfID, *name, signaler, factory, capture, mesh.DefaultEngineOptions())
	engine.OnStreamChange(func() {
		for _, stream := range engine.Streams() {
			slog.Info("remote stream",
				slog.String("peer_id", stream.PeerID),
				slog.String("name", stream.Name),
				slog.Int("tracks", len(stream.Tracks)),
			)
		}
	})

	ctx := context.Background()

	join, err := payload.NewJoinRoomMessage(payload.JoinRoomPayload{
		RoomID:        room,
		ParticipantID: selfID,
		Name:          *name,
	})
	if err != nil {
		slog.Error("failed to build join message", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := signaler.Send(ctx, join); err != nil {
		slog.Error("failed to join room", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("joining room", "room_id", room, "participant_id", selfID)

	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg payload.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				slog.Warn("failed to unmarshal message", slog.String("error", err.Error()))
				continue
			}

			if err := engine.HandleMessage(ctx, &msg); err != nil {
				slog.Warn("failed to handle message",
					slog.String("error", err.Error()),
					slog.String("type", string(msg.Type)),
				)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		slog.Info("leaving room...")
		if leave, err := payload.NewLeaveRoomMessage(); err == nil {
			signaler.Send(ctx, leave)
		}
	case <-done:
		slog.Info("signaling connection closed")
	}

	engine.Close()
}

func rtcOptions(cfg config.WebRTCConfig) rtc.Options {
	options := rtc.Options{EnableMDNS: cfg.MDNS}

	for _, server := range cfg.ICEServers {
		options.ICEServers = append(options.ICEServers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	return options
}
