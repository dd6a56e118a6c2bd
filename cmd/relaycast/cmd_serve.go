/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/relaycast/internal/api"
	"github.com/example/relaycast/internal/archive"
	"github.com/example/relaycast/internal/db"
	"github.com/example/relaycast/internal/events"
	"github.com/example/relaycast/internal/history"
	"github.com/example/relaycast/internal/notify"
	"github.com/example/relaycast/internal/relay"
	"github.com/example/relaycast/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay HTTP and WebSocket server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	logger.Info().Str("environment", cfg.Environment).Msg("relaycast starting")

	if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
		return err
	}

	bus := events.NewBus()
	store := relay.NewSessionStore(relay.Options{
		RecordingsDir:      cfg.RecordingsDir,
		SessionTTL:         cfg.SessionTTL,
		MaxListeners:       cfg.MaxListenersPerSession,
		ListenerQueueDepth: cfg.ListenerQueueDepth,
		SlowConsumerLimit:  cfg.SlowConsumerThreshold,
		RecordingHighWater: cfg.RecordingHighWaterMark,
	}, bus, logger)

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "relaycast",
		ServiceVersion: relayVersion,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return err
	}

	database, err := db.Connect(cfg, logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	defer db.Close(database)
	go db.WatchConnectionMetrics(ctx, database, 30*time.Second)

	historySvc := history.NewService(database, bus, logger)
	go historySvc.Start(ctx)

	archiver, err := archive.NewRecordingArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("recording archiver disabled")
	}
	go archiver.Listen(ctx, bus)

	notifier := notify.NewLifecycleNotifier(ctx, cfg.NATSURL, logger)
	go notifier.Listen(ctx, bus)
	defer notifier.Close()

	srv := api.New(cfg, logger, store)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancelBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}

	logger.Info().Msg("relaycast stopped")
	return nil
}
