package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"lol-stats-tracker/internal/config"
	"lol-stats-tracker/internal/constants"
	fxmodules "lol-stats-tracker/internal/fx"
	"lol-stats-tracker/internal/middleware"
	"lol-stats-tracker/internal/server"
	"lol-stats-tracker/internal/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runAdminServer),
		fx.Invoke(runIngestLoop),
	).Run()
}

func runAdminServer(
	lc fx.Lifecycle,
	adminServer *server.AdminServer,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	handler := middleware.RequestID(logger)(c.Handler(adminServer.Routes()))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.AdminPort),
		Handler: handler,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("admin server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("admin server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down admin server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("admin server shutdown failed")
				return err
			}
			logger.Info().Msg("admin server stopped gracefully")
			return nil
		},
	})
}

func runIngestLoop(
	lc fx.Lifecycle,
	ingestSvc *service.IngestService,
	cfg *config.Config,
	shutdowner fx.Shutdowner,
	logger zerolog.Logger,
) {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	runOnce := func() {
		passCtx, passCancel := context.WithTimeout(loopCtx, constants.IngestPassTimeout)
		defer passCancel()
		if _, err := ingestSvc.Run(passCtx); err != nil {
			logger.Error().Err(err).Msg("ingestion pass failed")
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)

				runOnce()
				if cfg.RunOnce {
					logger.Info().Msg("single pass complete, shutting down")
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error().Err(err).Msg("shutdown request failed")
					}
					return
				}

				ticker := time.NewTicker(cfg.IngestInterval)
				defer ticker.Stop()
				for {
					select {
					case <-loopCtx.Done():
						return
					case <-ticker.C:
						runOnce()
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				logger.Warn().Msg("ingest loop did not stop in time")
			}
			return nil
		},
	})
}
