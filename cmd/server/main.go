package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/mytipspro/checkmychecks/internal/api"
	"github.com/mytipspro/checkmychecks/internal/config"
	"github.com/mytipspro/checkmychecks/internal/database"
	"github.com/mytipspro/checkmychecks/internal/obs"
	"github.com/mytipspro/checkmychecks/internal/queue"
	"github.com/mytipspro/checkmychecks/internal/repository"
	"github.com/mytipspro/checkmychecks/internal/s3storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	obs.SetupLogging(cfg.IsLocalDev())

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	repo := repository.NewPaystubJobRepository(pool)

	store, err := s3storage.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure buckets")
	}

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()
	enqueue := func(ctx context.Context, payload queue.ProcessPayload) error {
		return queue.EnqueueProcess(ctx, queueClient, payload)
	}

	srv := api.New(cfg, repo, store, enqueue, log.Logger)
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
