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

	router "github.com/medilink/telemed/internal/adapters/http"
	"github.com/medilink/telemed/internal/adapters/memory"
	"github.com/medilink/telemed/internal/adapters/postgres"
	"github.com/medilink/telemed/internal/app"
	"github.com/medilink/telemed/internal/config"
	"github.com/medilink/telemed/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var (
		consultations core.ConsultationStore
		aiChats       core.AIChatStore
	)
	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		consultations, aiChats = store, store
		log.Info().Msg("using postgres persistence collaborator")
	} else {
		store := memory.NewStore()
		consultations, aiChats = store, store
		log.Warn().Msg("no database_url configured, using in-memory stores")
	}

	// The identity collaborator is the platform's auth service; the
	// in-memory one here only serves local development.
	identity := memory.NewIdentity()

	hub := app.NewHub(identity, consultations, aiChats)

	sup := app.NewSupervisor(hub, cfg.SweepInterval, cfg.IdleTimeout)
	go sup.Run(ctx)

	r := router.SetupRouter(ctx, cfg, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("telemed coordination server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	hub.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
