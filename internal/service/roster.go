package service

import (
	"context"
	"fmt"
	"strings"

	"lol-stats-tracker/internal/config"
	"lol-stats-tracker/internal/domain"
	"lol-stats-tracker/internal/repository"
	"lol-stats-tracker/internal/riot"

	"github.com/rs/zerolog"
)

// TrackedPlayer pairs a registered player row with its roster entry, which
// carries per-player queue overrides.
type TrackedPlayer struct {
	Player domain.Player
	Config config.PlayerConfig
}

// RosterService keeps the players table in step with the configured roster:
// new entries are resolved to a puuid through the account API and registered,
// known entries have their identity fields refreshed.
type RosterService struct {
	provider Provider
	players  *repository.PlayerRepository
	cfg      *config.Config
	logger   zerolog.Logger
}

func NewRosterService(provider Provider, players *repository.PlayerRepository, cfg *config.Config, logger zerolog.Logger) *RosterService {
	return &RosterService{
		provider: provider,
		players:  players,
		cfg:      cfg,
		logger:   logger,
	}
}

// Sync registers every roster entry and returns the tracked set. Entries
// that cannot be resolved are reported as skipped, never aborting the rest
// of the roster.
func (s *RosterService) Sync(ctx context.Context) ([]TrackedPlayer, []domain.PlayerRunResult, error) {
	var tracked []TrackedPlayer
	var skipped []domain.PlayerRunResult

	for _, pc := range s.cfg.Roster.Players {
		player, err := s.syncPlayer(ctx, pc)
		if err != nil {
			s.logger.Warn().Err(err).Str("riot_id", pc.RiotID).Msg("roster entry skipped")
			skipped = append(skipped, domain.PlayerRunResult{
				RiotID: pc.RiotID,
				Status: domain.RunStatusSkipped,
				Err:    err.Error(),
			})
			continue
		}
		tracked = append(tracked, TrackedPlayer{Player: *player, Config: pc})
	}

	return tracked, skipped, nil
}

func (s *RosterService) syncPlayer(ctx context.Context, pc config.PlayerConfig) (*domain.Player, error) {
	routing, err := s.cfg.Roster.RoutingFor(pc.Platform)
	if err != nil {
		return nil, err
	}

	player, err := s.players.GetByRiotID(ctx, pc.RiotID)
	if err != nil {
		return nil, err
	}

	if player == nil {
		name, tag, err := ParseRiotID(pc.RiotID)
		if err != nil {
			return nil, err
		}

		account, err := s.provider.GetAccountByRiotID(ctx, routing, name, tag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", pc.RiotID, err)
		}

		player = &domain.Player{
			Puuid:  account.Puuid,
			RiotID: pc.RiotID,
		}
		s.logger.Info().Str("riot_id", pc.RiotID).Str("puuid", player.Puuid).Msg("registered new player")
	}

	player.Platform = pc.Platform
	player.Routing = routing
	if err := s.players.Upsert(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// ParseRiotID splits a "Name#TAG" handle into its parts.
func ParseRiotID(riotID string) (name, tag string, err error) {
	name, tag, ok := strings.Cut(riotID, "#")
	if !ok || name == "" || tag == "" {
		return "", "", &riot.PermanentError{Err: fmt.Errorf("riot_id must look like Name#TAG, got: %s", riotID)}
	}
	return name, tag, nil
}
