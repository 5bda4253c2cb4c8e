package main

import (
	"context"
	"database/sql"
	"fmt"
	"kanaliiga-observer/internal/config"
	"kanaliiga-observer/internal/constants"
	fxmodules "kanaliiga-observer/internal/fx"
	"kanaliiga-observer/internal/middleware"
	"kanaliiga-observer/internal/repository"
	"kanaliiga-observer/internal/server"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	observerServer *server.ObserverServer,
	relay *server.RelayHandler,
	cache *repository.ResponseCacheRepository,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
	})

	requestIDMiddleware := middleware.RequestID(logger)

	path, handler := observerServer.Handler()
	mux.Handle(path, requestIDMiddleware(c.Handler(handler)))
	mux.Handle(server.ObserverPackPath, requestIDMiddleware(c.Handler(http.HandlerFunc(observerServer.ServeObserverPack))))
	// the relay sets its own CORS headers
	mux.Handle(server.RelayPath, requestIDMiddleware(relay))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.CacheTTL > 0 {
				if n, err := cache.Purge(ctx, cfg.CacheTTL); err != nil {
					logger.Warn().Err(err).Msg("failed to purge expired cache entries")
				} else {
					logger.Info().Int64("purged", n).Msg("expired cache entries purged")
				}
			}

			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
