package fx

import (
	"lol-stats-tracker/internal/config"
	"lol-stats-tracker/internal/database"
	"lol-stats-tracker/internal/logger"
	"lol-stats-tracker/internal/repository"
	"lol-stats-tracker/internal/riot"
	"lol-stats-tracker/internal/server"
	"lol-stats-tracker/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewIngestStateRepository),
	fx.Provide(repository.NewRecordRepository),
	fx.Provide(repository.NewQueueRepository),
	// provider client
	fx.Provide(riot.NewClient),
	fx.Provide(func(c *riot.Client) service.Provider { return c }),
	// svc
	fx.Provide(service.NewRosterService),
	fx.Provide(service.NewRecordService),
	fx.Provide(service.NewIngestService),
	// server
	fx.Provide(server.NewAdminServer),
)
