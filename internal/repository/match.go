package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lol-stats-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// CommitResult reports what one atomic match commit actually wrote.
type CommitResult struct {
	MatchCreated  bool
	StatsInserted []domain.PlayerMatchStat
}

// CommitMatch durably writes one match row plus the fact rows for every
// tracked participant, in a single transaction. The match insert is
// insert-if-absent: a row written earlier (by another player's window) is
// left untouched and the stored row stays authoritative: the denormalized
// game_start_ts/queue_id on each stat row are copied from it, never from the
// incoming payload. Re-running over an already-committed match is a no-op.
func (r *MatchRepository) CommitMatch(ctx context.Context, match *domain.Match, stats []domain.PlayerMatchStat) (*CommitResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO matches
			(match_id, routing, platform, queue_id, game_start_ts, duration_s,
			 game_mode, game_type, map_id, patch, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, match.MatchID, match.Routing, match.Platform, match.QueueID, match.GameStartTS,
		match.DurationS, match.GameMode, match.GameType, match.MapID, match.Patch,
		time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to insert match %s: %w", match.MatchID, err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	created := inserted > 0

	stored, err := getMatchTx(ctx, tx, match.MatchID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("match %s missing after insert", match.MatchID)
	}

	if !created {
		r.checkAnomaly(match, stored)
	}

	result := &CommitResult{MatchCreated: created}
	for _, stat := range stats {
		stat.QueueID = stored.QueueID
		if stored.GameStartTS != nil {
			stat.GameStartTS = *stored.GameStartTS
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO player_match_stats (
				puuid, match_id,
				win, team_id, role, lane, position,
				champion_id, champion_name,
				kills, deaths, assists,
				cs, gold_earned, gold_spent,
				dmg_to_champs, dmg_taken,
				vision_score, wards_placed, wards_killed, turret_kills,
				time_dead_s,
				game_start_ts, queue_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, stat.Puuid, stat.MatchID,
			stat.Win, stat.TeamID, stat.Role, stat.Lane, stat.Position,
			stat.ChampionID, stat.ChampionName,
			stat.Kills, stat.Deaths, stat.Assists,
			stat.CS, stat.GoldEarned, stat.GoldSpent,
			stat.DmgToChamps, stat.DmgTaken,
			stat.VisionScore, stat.WardsPlaced, stat.WardsKilled, stat.TurretKills,
			stat.TimeDeadS,
			stat.GameStartTS, stat.QueueID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert stat %s/%s: %w", stat.Puuid, stat.MatchID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n > 0 {
			result.StatsInserted = append(result.StatsInserted, stat)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match %s: %w", match.MatchID, err)
	}
	return result, nil
}

// checkAnomaly flags a payload that disagrees with the stored immutable row.
// The stored row wins; this only surfaces upstream provider inconsistencies.
func (r *MatchRepository) checkAnomaly(incoming, stored *domain.Match) {
	mismatch := !int64PtrEq(incoming.QueueID, stored.QueueID) ||
		!int64PtrEq(incoming.GameStartTS, stored.GameStartTS) ||
		!int64PtrEq(incoming.DurationS, stored.DurationS)
	if mismatch {
		r.logger.Warn().
			Str("match_id", incoming.MatchID).
			Interface("stored_queue_id", stored.QueueID).
			Interface("payload_queue_id", incoming.QueueID).
			Interface("stored_game_start_ts", stored.GameStartTS).
			Interface("payload_game_start_ts", incoming.GameStartTS).
			Msg("match payload disagrees with stored row, keeping stored row")
	}
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	return getMatchQ(ctx, r.db, matchID)
}

// Exists reports whether the shared match row has already been persisted.
func (r *MatchRepository) Exists(ctx context.Context, matchID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE match_id = ? LIMIT 1`, matchID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check match %s: %w", matchID, err)
	}
	return true, nil
}

// HasStat reports whether the fact row for (puuid, match) already exists.
func (r *MatchRepository) HasStat(ctx context.Context, puuid, matchID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM player_match_stats WHERE puuid = ? AND match_id = ? LIMIT 1
	`, puuid, matchID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check stat %s/%s: %w", puuid, matchID, err)
	}
	return true, nil
}

func (r *MatchRepository) GetStat(ctx context.Context, puuid, matchID string) (*domain.PlayerMatchStat, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT puuid, match_id, win, team_id, role, lane, position,
		       champion_id, champion_name, kills, deaths, assists,
		       cs, gold_earned, gold_spent, dmg_to_champs, dmg_taken,
		       vision_score, wards_placed, wards_killed, turret_kills,
		       time_dead_s, game_start_ts, queue_id
		FROM player_match_stats WHERE puuid = ? AND match_id = ?
	`, puuid, matchID)

	var s domain.PlayerMatchStat
	err := row.Scan(&s.Puuid, &s.MatchID, &s.Win, &s.TeamID, &s.Role, &s.Lane, &s.Position,
		&s.ChampionID, &s.ChampionName, &s.Kills, &s.Deaths, &s.Assists,
		&s.CS, &s.GoldEarned, &s.GoldSpent, &s.DmgToChamps, &s.DmgTaken,
		&s.VisionScore, &s.WardsPlaced, &s.WardsKilled, &s.TurretKills,
		&s.TimeDeadS, &s.GameStartTS, &s.QueueID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan stat %s/%s: %w", puuid, matchID, err)
	}
	return &s, nil
}

// CountStats returns the number of fact rows for one player.
func (r *MatchRepository) CountStats(ctx context.Context, puuid string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM player_match_stats WHERE puuid = ?
	`, puuid).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stats for %s: %w", puuid, err)
	}
	return count, nil
}

// DeleteMatch removes a match administratively; dependent stat rows follow
// via cascade. Not used by the ingestion path.
func (r *MatchRepository) DeleteMatch(ctx context.Context, matchID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE match_id = ?`, matchID)
	if err != nil {
		return fmt.Errorf("failed to delete match %s: %w", matchID, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getMatchQ(ctx context.Context, q queryer, matchID string) (*domain.Match, error) {
	row := q.QueryRowContext(ctx, `
		SELECT match_id, routing, platform, queue_id, game_start_ts, duration_s,
		       game_mode, game_type, map_id, patch, ingested_at
		FROM matches WHERE match_id = ?
	`, matchID)

	var m domain.Match
	var platform, gameMode, gameType, patch *string
	var ingestedAt int64

	err := row.Scan(&m.MatchID, &m.Routing, &platform, &m.QueueID, &m.GameStartTS,
		&m.DurationS, &gameMode, &gameType, &m.MapID, &patch, &ingestedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan match %s: %w", matchID, err)
	}

	if platform != nil {
		m.Platform = *platform
	}
	if gameMode != nil {
		m.GameMode = *gameMode
	}
	if gameType != nil {
		m.GameType = *gameType
	}
	if patch != nil {
		m.Patch = *patch
	}
	m.IngestedAt = time.Unix(ingestedAt, 0)
	return &m, nil
}

func getMatchTx(ctx context.Context, tx *sql.Tx, matchID string) (*domain.Match, error) {
	return getMatchQ(ctx, tx, matchID)
}

func int64PtrEq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
