package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lol-stats-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Upsert registers a player for tracking or refreshes its identity fields.
// added_at is kept from the first registration; last_seen_at is managed
// separately by the ingestion pass.
func (r *PlayerRepository) Upsert(ctx context.Context, player *domain.Player) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (puuid, riot_id, platform, routing, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(puuid) DO UPDATE SET
			riot_id = excluded.riot_id,
			platform = excluded.platform,
			routing = excluded.routing
	`, player.Puuid, player.RiotID, player.Platform, player.Routing, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", player.Puuid, err)
	}
	return nil
}

func (r *PlayerRepository) Get(ctx context.Context, puuid string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT puuid, riot_id, platform, routing, added_at, last_seen_at
		FROM players WHERE puuid = ?
	`, puuid)
	return scanPlayer(row)
}

func (r *PlayerRepository) GetByRiotID(ctx context.Context, riotID string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT puuid, riot_id, platform, routing, added_at, last_seen_at
		FROM players WHERE riot_id = ?
	`, riotID)
	return scanPlayer(row)
}

func (r *PlayerRepository) List(ctx context.Context) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT puuid, riot_id, platform, routing, added_at, last_seen_at
		FROM players ORDER BY riot_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayerRow(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

// TouchLastSeen records a successful ingestion pass for the player.
func (r *PlayerRepository) TouchLastSeen(ctx context.Context, puuid string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE players SET last_seen_at = ? WHERE puuid = ?
	`, at.Unix(), puuid)
	if err != nil {
		return fmt.Errorf("failed to touch last_seen_at for %s: %w", puuid, err)
	}
	return nil
}

// Delete removes a player; stats and checkpoint follow via cascade, shared
// match rows stay.
func (r *PlayerRepository) Delete(ctx context.Context, puuid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE puuid = ?`, puuid)
	if err != nil {
		return fmt.Errorf("failed to delete player %s: %w", puuid, err)
	}
	return nil
}

func scanPlayer(row *sql.Row) (*domain.Player, error) {
	var p domain.Player
	var addedAt int64
	var lastSeenAt *int64

	err := row.Scan(&p.Puuid, &p.RiotID, &p.Platform, &p.Routing, &addedAt, &lastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}

	p.AddedAt = time.Unix(addedAt, 0)
	if lastSeenAt != nil {
		t := time.Unix(*lastSeenAt, 0)
		p.LastSeenAt = &t
	}
	return &p, nil
}

func scanPlayerRow(rows *sql.Rows) (*domain.Player, error) {
	var p domain.Player
	var addedAt int64
	var lastSeenAt *int64

	if err := rows.Scan(&p.Puuid, &p.RiotID, &p.Platform, &p.Routing, &addedAt, &lastSeenAt); err != nil {
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}

	p.AddedAt = time.Unix(addedAt, 0)
	if lastSeenAt != nil {
		t := time.Unix(*lastSeenAt, 0)
		p.LastSeenAt = &t
	}
	return &p, nil
}
