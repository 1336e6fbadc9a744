package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lol-stats-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// IngestStateRepository is the checkpoint store: one monotonically
// non-decreasing timestamp per tracked player, marking how far that player's
// history has been fully ingested.
type IngestStateRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewIngestStateRepository(sqlDB *sql.DB, logger zerolog.Logger) *IngestStateRepository {
	return &IngestStateRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Get returns the player's checkpoint, or ok=false when the player has never
// completed a window.
func (r *IngestStateRepository) Get(ctx context.Context, puuid string) (int64, bool, error) {
	var ts int64
	err := r.db.QueryRowContext(ctx, `
		SELECT last_end_time_ts FROM ingest_state WHERE puuid = ?
	`, puuid).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get checkpoint for %s: %w", puuid, err)
	}
	return ts, true, nil
}

// Advance moves the checkpoint forward. Equal timestamps succeed idempotently;
// a smaller timestamp fails with a RegressionError. Callers must only invoke
// this after the window's match and stat writes are durably committed.
func (r *IngestStateRepository) Advance(ctx context.Context, puuid string, newTS int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `
		SELECT last_end_time_ts FROM ingest_state WHERE puuid = ?
	`, puuid).Scan(&current)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ingest_state (puuid, last_end_time_ts, updated_at)
			VALUES (?, ?, ?)
		`, puuid, newTS, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to create checkpoint for %s: %w", puuid, err)
		}
	case err != nil:
		return fmt.Errorf("failed to read checkpoint for %s: %w", puuid, err)
	case newTS < current:
		return &RegressionError{Puuid: puuid, Current: current, Proposed: newTS}
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE ingest_state SET last_end_time_ts = ?, updated_at = ? WHERE puuid = ?
		`, newTS, time.Now().Unix(), puuid)
		if err != nil {
			return fmt.Errorf("failed to advance checkpoint for %s: %w", puuid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint for %s: %w", puuid, err)
	}
	return nil
}

// List returns every player's checkpoint, for the status surface.
func (r *IngestStateRepository) List(ctx context.Context) ([]domain.IngestState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT puuid, last_end_time_ts, updated_at FROM ingest_state
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var states []domain.IngestState
	for rows.Next() {
		var s domain.IngestState
		var updatedAt int64
		if err := rows.Scan(&s.Puuid, &s.LastEndTimeTS, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		s.UpdatedAt = time.Unix(updatedAt, 0)
		states = append(states, s)
	}
	return states, rows.Err()
}
