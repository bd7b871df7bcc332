package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/archscope-hq/archscope/internal/config"
	"github.com/archscope-hq/archscope/internal/db"
	"github.com/archscope-hq/archscope/internal/ingest"
	"github.com/archscope-hq/archscope/internal/jobs"
	"github.com/archscope-hq/archscope/internal/lang"
	archnats "github.com/archscope-hq/archscope/internal/nats"
	"github.com/archscope-hq/archscope/internal/pipeline"
	"github.com/archscope-hq/archscope/internal/worker"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	database, err := db.New(connectCtx, cfg.DatabaseURL)
	connectCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	store := db.NewStore(database)
	repo := jobs.NewRepository(database.Pool())

	// Connect to NATS (optional)
	var natsClient *archnats.Client
	if cfg.NATSURL != "" {
		natsClient, err = archnats.Connect(cfg.NATSURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, worker will poll database")
		} else {
			defer natsClient.Close()
			setupCtx, setupCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := natsClient.EnsureJobStream(setupCtx); err != nil {
				log.Warn().Err(err).Msg("failed to setup NATS job stream")
			}
			setupCancel()
		}
	}

	p := pipeline.New(store, lang.NewRegistry(), pipeline.WithConcurrency(cfg.Concurrency))

	w := worker.New(worker.Config{
		Config:     cfg,
		Store:      store,
		Repository: repo,
		NATS:       natsClient,
		Ingest:     ingest.NewService(cfg.WorkspaceDir),
		Pipeline:   p,
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("worker is shutting down...")
		cancel()
	}()

	log.Info().Msg("starting analysis worker")
	if err := w.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker error")
	}

	log.Info().Msg("worker stopped")
}
