package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/byhat/loracore/pkg/api"
	"github.com/byhat/loracore/pkg/bridge"
	"github.com/byhat/loracore/pkg/db"
	"github.com/byhat/loracore/pkg/link"
	"github.com/byhat/loracore/pkg/lora"
	"github.com/byhat/loracore/pkg/metrics"
	"github.com/byhat/loracore/pkg/schema"
)

// @title           LoRaCore API
// @version         1.0
// @description     REST API for the E22 LoRa reliable-delivery transport

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse flags
	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/loracore/loracore.db)")
	device := flag.String("device", "", "Serial device path (default: from config)")
	baud := flag.Int("baud", 0, "Serial baud rate (default: from config)")
	listen := flag.String("listen", "", "API listen address (default: from config)")
	redisAddr := flag.String("redis", "", "Redis address for the event bridge (disabled when empty)")
	standalone := flag.Bool("standalone", false, "Run without a radio (API and transfer log only)")
	flag.Parse()

	ctx := context.Background()

	// Open database
	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	log.Info().Str("path", database.Path()).Msg("Database opened")

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Bootstrap if needed (first run)
	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to check bootstrap status")
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := database.Bootstrap(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap database")
		}
		log.Info().Msg("Database bootstrapped successfully")
	}

	// Load configuration
	cfg, err := database.ActiveConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if *device == "" {
		*device = cfg.Device()
	}
	if *baud == 0 {
		*baud = cfg.Baud()
	}
	if *listen == "" {
		*listen = cfg.APIAddress()
	}

	log.Info().
		Str("profile", cfg.Profile.Name).
		Str("device", *device).
		Int("baud", *baud).
		Str("api_address", *listen).
		Msg("Configuration loaded")

	// Bring up the radio link
	var lnk link.Link
	var subscriber link.EventSubscriber

	if *standalone {
		log.Info().Msg("Standalone mode, no radio attached")
		lnk = link.NewNullLink()
		subscriber = link.NewNullEventSubscriber()
	} else {
		radio := lora.NewRadio()
		if err := radio.OpenPort(ctx, *device, *baud); err != nil {
			log.Warn().Err(err).Str("device", *device).Msg("Serial port unavailable, starting with port closed")
		}
		lnk = radio
		subscriber = radio

		prometheus.MustRegister(metrics.NewLinkCollector("loracore", radio))
	}

	// Record transfer outcomes in the database
	go recordTransfers(ctx, database, cfg.Profile.ID, subscriber)

	// Optional Redis event bridge
	if *redisAddr != "" {
		br, err := bridge.New(*redisAddr, "", 0)
		if err != nil {
			log.Fatal().Err(err).Str("addr", *redisAddr).Msg("Failed to connect to Redis")
		}
		defer func() { _ = br.Close() }()
		go br.Run(ctx, subscriber)
		log.Info().Str("addr", *redisAddr).Msg("Redis event bridge running")
	}

	validator := schema.NewValidator()

	// Create and start API router
	router := api.NewRouter(lnk, subscriber, validator, database)

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		lnk.Close()
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
		os.Exit(0)
	}()

	// Start server
	log.Info().Str("address", *listen).Msg("Starting API server")

	if err := router.Run(*listen); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// recordTransfers appends a transfer-log row for every terminal packet
// event. The terminal events carry the full accounting (size, chunk
// count, retransmissions, start/finish times); only the error text of a
// failed send arrives on the preceding error event.
func recordTransfers(ctx context.Context, database *db.DB, profileID int64, subscriber link.EventSubscriber) {
	events := subscriber.Subscribe()
	defer subscriber.Unsubscribe(events)

	var lastError string

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			switch evt.Type {
			case link.EventError:
				lastError = evt.Message
			case link.EventPacketSent:
				t := &db.Transfer{
					ProfileID:   profileID,
					Direction:   link.DirectionOutbound,
					SizeBytes:   evt.Sent,
					ChunkCount:  evt.ChunkCount,
					Retransmits: evt.Retries,
					Status:      db.TransferStatusOK,
					StartedAt:   evt.StartedAt,
					FinishedAt:  evt.FinishedAt,
				}
				if !evt.OK {
					t.Status = db.TransferStatusFailed
					t.Error = lastError
				}
				if err := database.Transfers().Record(ctx, t); err != nil {
					log.Warn().Err(err).Msg("Failed to record outbound transfer")
				}
				lastError = ""
			case link.EventPacketReceived:
				t := &db.Transfer{
					ProfileID:  profileID,
					Direction:  link.DirectionInbound,
					SizeBytes:  len(evt.Data),
					ChunkCount: evt.ChunkCount,
					Status:     db.TransferStatusOK,
					StartedAt:  evt.StartedAt,
					FinishedAt: evt.FinishedAt,
				}
				if err := database.Transfers().Record(ctx, t); err != nil {
					log.Warn().Err(err).Msg("Failed to record inbound transfer")
				}
			}
		}
	}
}
