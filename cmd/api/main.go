// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/quill/internal/backend"
	"github.com/briangreenhill/quill/internal/blog"
	"github.com/briangreenhill/quill/internal/config"
	"github.com/briangreenhill/quill/internal/logging"
)

func main() {
	boot := zerolog.New(os.Stderr)
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config error")
	}

	// Logger
	logger, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		boot.Fatal().Err(err).Msg("logger error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store error")
	}
	defer closeStore()

	// Router / server
	s := backend.New(backend.ServerOptions{Store: store, Logger: logger, WriteToken: cfg.API.Token})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting blog api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
	logger.Info().Msg("shutdown complete")
}

// openStore picks Postgres when DATABASE_URL is set, else an in-memory
// store optionally seeded from BLOG_SEED_FILE.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (backend.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := backend.NewPGStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("using postgres store")
		return pg, pg.Close, nil
	}

	var seed []blog.Post
	if cfg.SeedFile != "" {
		var err error
		if seed, err = backend.LoadSeed(cfg.SeedFile); err != nil {
			return nil, nil, err
		}
	}
	logger.Info().Int("seeded", len(seed)).Msg("using in-memory store")
	return backend.NewMemoryStore(seed...), func() {}, nil
}
