package fx

import (
	"kanaliiga-observer/internal/api"
	"kanaliiga-observer/internal/config"
	"kanaliiga-observer/internal/database"
	"kanaliiga-observer/internal/logger"
	"kanaliiga-observer/internal/repository"
	"kanaliiga-observer/internal/server"
	"kanaliiga-observer/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

var Module = fx.Options(
	logger.Module,
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewResponseCacheRepository),
	fx.Provide(func(r *repository.ResponseCacheRepository) api.ResponseCache { return r }),
	// api client
	fx.Provide(api.NewKanastatsClient),
	fx.Provide(func(c *api.KanastatsClient) service.Upstream { return c }),
	// svc
	fx.Provide(service.NewLabeler),
	fx.Provide(service.NewLandingService),
	fx.Provide(service.NewSelectionService),
	fx.Provide(service.NewObserverService),
	// server
	fx.Provide(server.NewObserverServer),
	fx.Provide(func(logger zerolog.Logger) *server.RelayHandler {
		return server.NewRelayHandler(api.NewFastHTTPClient(), logger)
	}),
)
