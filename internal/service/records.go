package service

import (
	"context"
	"encoding/json"
	"fmt"

	"lol-stats-tracker/internal/domain"
	"lol-stats-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// metric describes one tracked extreme: the record key, the comparison
// direction, and how to pull a candidate value from a fact row. Records are
// scoped globally across the roster; keys carry the "global:" prefix so a
// per-player scope can be added later without colliding.
type metric struct {
	key        string
	higherWins bool
	extract    func(*domain.PlayerMatchStat) (float64, bool)
}

var metrics = []metric{
	{"global:kills", true, func(s *domain.PlayerMatchStat) (float64, bool) {
		return float64(s.Kills), true
	}},
	{"global:kda", true, func(s *domain.PlayerMatchStat) (float64, bool) {
		return kdaRatio(s.Kills, s.Deaths, s.Assists), true
	}},
	{"global:cs", true, func(s *domain.PlayerMatchStat) (float64, bool) {
		return float64(s.CS), true
	}},
	{"global:dmg_to_champs", true, func(s *domain.PlayerMatchStat) (float64, bool) {
		if s.DmgToChamps == nil {
			return 0, false
		}
		return float64(*s.DmgToChamps), true
	}},
	{"global:vision_score", true, func(s *domain.PlayerMatchStat) (float64, bool) {
		if s.VisionScore == nil {
			return 0, false
		}
		return float64(*s.VisionScore), true
	}},
	{"global:time_dead_s", false, func(s *domain.PlayerMatchStat) (float64, bool) {
		if s.TimeDeadS == nil {
			return 0, false
		}
		return float64(*s.TimeDeadS), true
	}},
}

// recordMeta is the context stored alongside a record value, identifying the
// fact row that produced it.
type recordMeta struct {
	Puuid       string  `json:"puuid"`
	MatchID     string  `json:"match_id"`
	GameStartTS int64   `json:"game_start_ts"`
	Value       float64 `json:"value"`
}

// RecordService feeds newly committed fact rows into the records table.
type RecordService struct {
	records *repository.RecordRepository
	logger  zerolog.Logger
}

func NewRecordService(records *repository.RecordRepository, logger zerolog.Logger) *RecordService {
	return &RecordService{records: records, logger: logger}
}

// ObserveStat offers every tracked metric of a newly written fact row to the
// records table. Metrics whose source counter was not reported are skipped.
func (s *RecordService) ObserveStat(ctx context.Context, stat *domain.PlayerMatchStat) error {
	for _, m := range metrics {
		value, ok := m.extract(stat)
		if !ok {
			continue
		}

		meta, err := json.Marshal(recordMeta{
			Puuid:       stat.Puuid,
			MatchID:     stat.MatchID,
			GameStartTS: stat.GameStartTS,
			Value:       value,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal record meta: %w", err)
		}

		updated, err := s.records.Observe(ctx, m.key, value, m.higherWins, string(meta))
		if err != nil {
			return fmt.Errorf("failed to observe %s: %w", m.key, err)
		}
		if updated {
			s.logger.Info().
				Str("key", m.key).
				Float64("value", value).
				Str("puuid", stat.Puuid).
				Str("match_id", stat.MatchID).
				Msg("new record")
		}
	}
	return nil
}

// List exposes the current records for the status surface.
func (s *RecordService) List(ctx context.Context) ([]domain.Record, error) {
	return s.records.List(ctx)
}

func kdaRatio(kills, deaths, assists int64) float64 {
	if deaths == 0 {
		return float64(kills + assists)
	}
	return float64(kills+assists) / float64(deaths)
}
