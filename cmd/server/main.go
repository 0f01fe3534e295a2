package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/HMasataka/huddle/internal/config"
	"github.com/HMasataka/huddle/internal/room"
	"github.com/HMasataka/huddle/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	addr := flag.String("addr", "", "server address (overrides config)")
	configPath := flag.String("config", "", "path to toml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := room.NewRegistry(room.RegistryOptions{
		IdleTimeout:   cfg.Room.IdleTimeout(),
		SweepInterval: cfg.Room.SweepInterval(),
	})
	go registry.Run(ctx)

	srv := server.New(registry, server.DefaultOptions())

	mux := http.NewServeMux()
	srv.Routes(mux)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	go func() {
		slog.Info("signaling server starting", "addr", cfg.Server.Addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down server...")
	cancel()
	httpServer.Close()
}
