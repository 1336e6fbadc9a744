package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lol-stats-tracker/internal/config"
	"lol-stats-tracker/internal/constants"
	"lol-stats-tracker/internal/domain"
	"lol-stats-tracker/internal/repository"
	"lol-stats-tracker/internal/riot"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type pipelineState string

const (
	stateIdle          pipelineState = "idle"
	stateFetchingIDs   pipelineState = "fetching_ids"
	stateFetchingMatch pipelineState = "fetching_match"
	stateCommitting    pipelineState = "committing"
)

// IngestService drives one window per tracked player: read the checkpoint,
// fetch the candidate ids oldest-to-newest, commit each unseen match
// together with fact rows for every tracked participant, then advance the
// checkpoint past the committed batch. Player windows run concurrently;
// failures stay isolated to their player.
type IngestService struct {
	provider  Provider
	rosterSvc *RosterService
	players   *repository.PlayerRepository
	matches   *repository.MatchRepository
	state     *repository.IngestStateRepository
	records   *RecordService
	cfg       *config.Config
	logger    zerolog.Logger

	now func() time.Time

	mu      sync.RWMutex
	lastRun *domain.RunReport
}

func NewIngestService(
	provider Provider,
	rosterSvc *RosterService,
	players *repository.PlayerRepository,
	matches *repository.MatchRepository,
	state *repository.IngestStateRepository,
	records *RecordService,
	cfg *config.Config,
	logger zerolog.Logger,
) *IngestService {
	return &IngestService{
		provider:  provider,
		rosterSvc: rosterSvc,
		players:   players,
		matches:   matches,
		state:     state,
		records:   records,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// LastRun returns the report of the most recent completed pass, or nil
// before the first one.
func (s *IngestService) LastRun() *domain.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Run executes one ingestion pass over the whole roster.
func (s *IngestService) Run(ctx context.Context) (*domain.RunReport, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	log := s.logger.With().Str("run_id", runID).Logger()
	report := &domain.RunReport{RunID: runID, StartedAt: s.now()}

	tracked, skipped, err := s.rosterSvc.Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sync roster: %w", err)
	}
	report.Players = append(report.Players, skipped...)

	// One fetched match feeds every tracked participant, so every window
	// needs the full tracked set and each player's enabled queues.
	enabled := make(map[string]map[int64]bool, len(tracked))
	for _, tp := range tracked {
		pc := tp.Config
		enabled[tp.Player.Puuid] = s.cfg.Roster.EnabledQueueIDs(&pc)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.MaxConcurrentPlayers)

	for _, tp := range tracked {
		g.Go(func() error {
			result := s.ingestPlayer(gctx, log, tp, enabled)
			mu.Lock()
			report.Players = append(report.Players, result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.FinishedAt = s.now()
	s.mu.Lock()
	s.lastRun = report
	s.mu.Unlock()

	var okCount, failCount, skipCount int
	for _, p := range report.Players {
		switch p.Status {
		case domain.RunStatusOK:
			okCount++
		case domain.RunStatusFailed:
			failCount++
		case domain.RunStatusSkipped:
			skipCount++
		}
	}
	log.Info().
		Int("ok", okCount).
		Int("failed", failCount).
		Int("skipped", skipCount).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("ingestion pass complete")

	return report, nil
}

func (s *IngestService) ingestPlayer(ctx context.Context, logger zerolog.Logger, tp TrackedPlayer, enabled map[string]map[int64]bool) domain.PlayerRunResult {
	p := tp.Player
	log := logger.With().Str("riot_id", p.RiotID).Str("puuid", p.Puuid).Logger()

	state := stateIdle
	transition := func(next pipelineState) {
		state = next
		log.Debug().Str("state", string(state)).Msg("pipeline state")
	}

	result := domain.PlayerRunResult{Puuid: p.Puuid, RiotID: p.RiotID, Status: domain.RunStatusOK}

	now := s.now().Unix()
	checkpoint, hasCheckpoint, err := s.state.Get(ctx, p.Puuid)
	if err != nil {
		return s.failResult(log, result, err)
	}
	result.Checkpoint = checkpoint

	t0 := checkpoint
	if !hasCheckpoint {
		t0 = now - int64(s.cfg.Roster.App.LookbackDays)*24*60*60
		if t0 < 0 {
			t0 = 0
		}
	}

	transition(stateFetchingIDs)
	ids, err := s.provider.ListMatchIDs(ctx, p.Routing, p.Puuid, t0, now, s.cfg.Roster.App.MaxMatchesPerPlayer)
	if err != nil {
		return s.failResult(log, result, err)
	}
	log.Debug().Int("candidates", len(ids)).Int64("window_start", t0).Int64("window_end", now).Msg("window opened")

	// lastProcessed tracks the game_start_ts of the newest match examined in
	// this window, including no-op re-examinations and queue-filtered
	// matches. The checkpoint advances to it, never to now, which would
	// skip matches the provider has not indexed yet.
	var lastProcessed int64
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		hasStat, err := s.matches.HasStat(ctx, p.Puuid, id)
		if err != nil {
			return s.failResult(log, result, err)
		}
		if hasStat {
			stored, err := s.matches.Get(ctx, id)
			if err != nil {
				return s.failResult(log, result, err)
			}
			if stored != nil && stored.GameStartTS != nil && *stored.GameStartTS > lastProcessed {
				lastProcessed = *stored.GameStartTS
			}
			continue
		}

		transition(stateFetchingMatch)
		payload, err := s.provider.GetMatch(ctx, p.Routing, id)
		if err != nil {
			return s.failResult(log, result, err)
		}

		match := normalizeMatch(p.Routing, payload)
		qid := payload.Info.QueueID

		var stats []domain.PlayerMatchStat
		for i := range payload.Info.Participants {
			part := &payload.Info.Participants[i]
			queues, tracked := enabled[part.Puuid]
			if !tracked {
				continue
			}
			if qid != nil && !queues[*qid] {
				continue
			}
			stats = append(stats, normalizeStat(match.MatchID, part))
		}

		if len(stats) == 0 {
			// Filtered for every tracked participant. Nothing is written,
			// but the window may still advance past it.
			log.Debug().Str("match_id", id).Interface("queue_id", qid).Msg("match filtered by queue")
			if match.GameStartTS != nil && *match.GameStartTS > lastProcessed {
				lastProcessed = *match.GameStartTS
			}
			continue
		}

		transition(stateCommitting)
		res, err := s.matches.CommitMatch(ctx, match, stats)
		if err != nil {
			return s.failResult(log, result, err)
		}
		if res.MatchCreated {
			result.NewMatches++
		}
		result.NewStats += len(res.StatsInserted)

		for i := range res.StatsInserted {
			stat := res.StatsInserted[i]
			if err := s.records.ObserveStat(ctx, &stat); err != nil {
				// Records are derived state; a failed observation never
				// aborts the window.
				log.Warn().Err(err).Str("match_id", stat.MatchID).Msg("record observation failed")
			}
		}

		if match.GameStartTS != nil && *match.GameStartTS > lastProcessed {
			lastProcessed = *match.GameStartTS
		}
	}

	if lastProcessed > 0 {
		if err := s.state.Advance(ctx, p.Puuid, lastProcessed); err != nil {
			var re *repository.RegressionError
			if errors.As(err, &re) {
				log.Error().Err(err).Msg("checkpoint would move backward")
			}
			return s.failResult(log, result, err)
		}
		result.Checkpoint = lastProcessed
	}

	if err := s.players.TouchLastSeen(ctx, p.Puuid, s.now()); err != nil {
		log.Warn().Err(err).Msg("failed to touch last_seen_at")
	}

	transition(stateIdle)
	log.Info().
		Int("new_matches", result.NewMatches).
		Int("new_stats", result.NewStats).
		Int64("checkpoint", result.Checkpoint).
		Msg("player window committed")
	return result
}

// failResult classifies a player-scoped failure. Permanent provider errors
// skip the player for this run; everything else aborts the window with the
// checkpoint untouched, so the next run safely re-fetches it.
func (s *IngestService) failResult(log zerolog.Logger, result domain.PlayerRunResult, err error) domain.PlayerRunResult {
	result.Err = err.Error()
	if riot.IsPermanent(err) {
		result.Status = domain.RunStatusSkipped
		log.Warn().Err(err).Msg("player skipped this run")
	} else {
		result.Status = domain.RunStatusFailed
		log.Error().Err(err).Msg("player window aborted")
	}
	return result
}
