package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tillsync/internal/config"
	"tillsync/internal/infra"
	"tillsync/internal/repository"
	"tillsync/internal/router"
	"tillsync/internal/sync"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local store")
	}

	creds, err := infra.NewCredentialStore(cfg.CredentialsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load credentials")
	}

	cloud := infra.NewCloudClient(cfg.CloudAPIURL, cfg.CloudTimeout, creds)
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	// The sync scheduler is the heart of offline-first behavior: the prober
	// feeds it connectivity edges, and each offline→online transition
	// drains the outbox exactly once.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := infra.NewHealthProber(cloud.Health, cfg.ProbeInterval, cfg.ProbeTimeout)
	outboxRepo := repository.NewOutboxRepository(db)
	engine := sync.NewEngine(outboxRepo, cloud)
	scheduler := sync.NewScheduler(engine, outboxRepo, prober)
	scheduler.Start(ctx)
	prober.Start(ctx)

	r := router.New(cfg, db, cloud, prober, cb, scheduler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("tillsync daemon listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("daemon exited")
}
