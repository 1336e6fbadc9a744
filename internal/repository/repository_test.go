package repository

import (
	"context"
	"database/sql"
	"testing"

	"lol-stats-tracker/internal/config"
	"lol-stats-tracker/internal/database"
	"lol-stats-tracker/internal/domain"

	"github.com/rs/zerolog"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(&config.Config{DBPath: t.TempDir() + "/test.db"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustUpsertPlayer(t *testing.T, db *sql.DB, puuid, riotID string) {
	t.Helper()

	repo := NewPlayerRepository(db, zerolog.Nop())
	err := repo.Upsert(context.Background(), &domain.Player{
		Puuid:    puuid,
		RiotID:   riotID,
		Platform: "euw1",
		Routing:  "europe",
	})
	if err != nil {
		t.Fatalf("Failed to upsert player %s: %v", puuid, err)
	}
}

func i64(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }
