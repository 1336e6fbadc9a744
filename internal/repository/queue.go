package repository

import (
	"context"
	"database/sql"
	"fmt"

	"lol-stats-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// QueueRepository reads the static queue lookup table. Ingestion never
// mutates it; labels arrive via migrations.
type QueueRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewQueueRepository(sqlDB *sql.DB, logger zerolog.Logger) *QueueRepository {
	return &QueueRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Label returns the human label for a queue id, or ok=false for unknown ids.
func (r *QueueRepository) Label(ctx context.Context, queueID int64) (string, bool, error) {
	var label string
	err := r.db.QueryRowContext(ctx, `
		SELECT label FROM queues WHERE queue_id = ?
	`, queueID).Scan(&label)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get queue %d: %w", queueID, err)
	}
	return label, true, nil
}

func (r *QueueRepository) List(ctx context.Context) ([]domain.Queue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT queue_id, label FROM queues ORDER BY queue_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	defer rows.Close()

	var queues []domain.Queue
	for rows.Next() {
		var q domain.Queue
		if err := rows.Scan(&q.QueueID, &q.Label); err != nil {
			return nil, fmt.Errorf("failed to scan queue: %w", err)
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}
