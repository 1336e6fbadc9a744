package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lol-stats-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// RecordRepository maintains named scalar extremes. Observe is a single-row
// compare-and-set: the stored value only changes when the candidate strictly
// improves on it, so ties keep the first-seen record holder.
type RecordRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRecordRepository(sqlDB *sql.DB, logger zerolog.Logger) *RecordRepository {
	return &RecordRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Observe offers a candidate value for a metric key. higherWins selects the
// comparison direction. Returns true when the stored record changed. The
// upsert's WHERE clause makes the read-compare-write atomic in the store, so
// concurrent observers of the same key cannot clobber a better value.
func (r *RecordRepository) Observe(ctx context.Context, key string, value float64, higherWins bool, metaJSON string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO records (key, value, meta_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			meta_json = excluded.meta_json,
			updated_at = excluded.updated_at
		WHERE (? AND excluded.value > records.value)
		   OR (NOT ? AND excluded.value < records.value)
	`, key, value, metaJSON, time.Now().Unix(), higherWins, higherWins)
	if err != nil {
		return false, fmt.Errorf("failed to observe record %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *RecordRepository) Get(ctx context.Context, key string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT key, value, meta_json, updated_at FROM records WHERE key = ?
	`, key)

	var rec domain.Record
	var updatedAt int64
	err := row.Scan(&rec.Key, &rec.Value, &rec.MetaJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record %s: %w", key, err)
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

func (r *RecordRepository) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, value, meta_json, updated_at FROM records ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		var updatedAt int64
		if err := rows.Scan(&rec.Key, &rec.Value, &rec.MetaJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}
