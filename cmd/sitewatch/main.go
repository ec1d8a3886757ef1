package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/svirmi/sitewatch/internal/aggregator"
	"github.com/svirmi/sitewatch/internal/alerts"
	"github.com/svirmi/sitewatch/internal/broadcast"
	"github.com/svirmi/sitewatch/internal/config"
	"github.com/svirmi/sitewatch/internal/connection"
	"github.com/svirmi/sitewatch/internal/logger"
	"github.com/svirmi/sitewatch/internal/models"
	"github.com/svirmi/sitewatch/internal/server"
	"github.com/svirmi/sitewatch/internal/telemetry"
	"github.com/svirmi/sitewatch/internal/wire"
)

const AppVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	logger.Init(cfg.Environment)

	log.Info().
		Str("version", AppVersion).
		Str("environment", cfg.Environment).
		Str("source_url", cfg.SourceURL).
		Msg("Starting sitewatch")

	// Optional alert transition journal
	var journal *alerts.Journal
	if cfg.AlertJournalPath != "" {
		journal, err = alerts.OpenJournal(cfg.AlertJournalPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.AlertJournalPath).Msg("Failed to open alert journal")
		}
		log.Info().Str("path", cfg.AlertJournalPath).Msg("Alert journal enabled")
	}

	engine := alerts.NewEngine(alerts.Thresholds{
		MinFPS:       cfg.MinFPS,
		MaxMemoryMB:  cfg.MaxMemoryMB,
		MaxLatencyMs: cfg.MaxLatencyMs,
	}, journal)

	agg := aggregator.New(cfg.WindowCapacity)
	feed := broadcast.NewService(cfg.BufferSize)
	decoder := wire.NewDecoder(cfg.MaxMessageSize)

	// The monitor handles pongs delivered over the same connection the
	// manager owns, so the two are wired through closures.
	var monitor *telemetry.Monitor

	manager := connection.NewManager(connection.Options{
		URL:              cfg.SourceURL,
		ReconnectDelay:   cfg.ReconnectDelay,
		HandshakeTimeout: cfg.HandshakeTimeout,
		MaxMessageSize:   cfg.MaxMessageSize,
		OnMessage: func(data []byte) {
			inbound, err := decoder.Decode(data)
			if err != nil {
				log.Warn().Err(err).Msg("Dropped inbound message")
				return
			}
			switch inbound.Kind {
			case wire.KindMetricEvent:
				agg.Ingest(*inbound.Event)
			case wire.KindPong:
				monitor.HandlePong()
			}
		},
		OnStateChange: func(state models.ConnState, attempts int) {
			log.Info().
				Stringer("state", state).
				Int("attempts", attempts).
				Msg("Event source connection state")
		},
	})

	monitor = telemetry.NewMonitor(telemetry.Options{
		FPSWindow:      cfg.FPSWindow,
		MemoryInterval: cfg.MemoryInterval,
		PingInterval:   cfg.PingInterval,
		Pinger:         manager,
		Publish: func(sample models.TelemetrySample) {
			payload, err := json.Marshal(sample)
			if err != nil {
				log.Error().Err(err).Msg("Failed to encode telemetry sample")
				return
			}
			feed.Publish(payload)
		},
	}, engine)

	srv := server.New(cfg.ListenAddr, agg, monitor, feed)

	// Start services
	monitor.Start()
	manager.Start()
	go func() {
		if err := srv.Run(); err != nil {
			log.Error().Err(err).Msg("Consumer surface error")
		}
	}()

	log.Info().
		Str("listen_addr", cfg.ListenAddr).
		Int("window_capacity", cfg.WindowCapacity).
		Msg("sitewatch running")

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Stop all components in reverse order
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Consumer surface shutdown error")
	}

	manager.Close()
	monitor.Stop()
	feed.Close()

	if journal != nil {
		if err := journal.Close(); err != nil {
			log.Warn().Err(err).Msg("Alert journal close error")
		}
	}

	stats := agg.Stats()
	log.Info().
		Int("sites", stats.Sites).
		Int64("ingested", stats.TotalIngested).
		Int64("evicted", stats.TotalEvicted).
		Msg("Graceful shutdown completed")
}
