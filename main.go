package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denpacast/broadcast/config"
	"github.com/denpacast/broadcast/internal/auth"
	"github.com/denpacast/broadcast/internal/broadcast"
	"github.com/denpacast/broadcast/internal/encoder"
	"github.com/denpacast/broadcast/internal/httpapi"
	"github.com/denpacast/broadcast/internal/metadata"
	"github.com/denpacast/broadcast/internal/shout"
	"github.com/denpacast/broadcast/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	slog.Info("starting broadcast daemon",
		"port", cfg.Port,
		"station_name", cfg.StationName,
		"sample_rate", cfg.SampleRate,
	)

	encoder.SetFFmpegPath(cfg.FFmpegPath)

	net := stream.New()
	net.StartStream(cfg.SampleRate)

	oracle := metadata.NewFileTagOracle(func() string { return "" })
	coord := broadcast.New(net, oracle, cfg.SampleRate)

	profiles, err := shout.LoadProfiles(cfg.BroadcastConfigFile)
	if err != nil {
		slog.Error("failed to load broadcast profiles", "path", cfg.BroadcastConfigFile, "error", err)
		os.Exit(1)
	}
	for _, p := range profiles {
		if err := coord.AddConnection(p); err != nil {
			slog.Error("rejected broadcast profile from config", "profile", p.Name, "error", err)
			continue
		}
		slog.Info("loaded broadcast profile", "profile", p.Name, "server", p.Server.String(), "format", p.Format.String())
	}
	coord.OnEnableChanged(1) // broadcasting starts enabled unless an operator disables it via the API

	a := auth.New(auth.Config{
		Username:  cfg.OperatorUsername,
		Password:  cfg.OperatorPassword,
		JWTSecret: cfg.JWTSecret,
	})

	router := httpapi.New(a, coord, cfg.BroadcastConfigFile)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("httpapi listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			slog.Error("httpapi server error", "error", err)
		}
	}

	slog.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shout.GracefulJoinTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("httpapi shutdown error", "error", err)
	}
	slog.Info("broadcast daemon stopped")
}
