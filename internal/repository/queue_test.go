package repository

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestQueueLabel(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepository(db, zerolog.Nop())
	ctx := context.Background()

	label, ok, err := repo.Label(ctx, 420)
	if err != nil {
		t.Fatalf("Failed to get queue label: %v", err)
	}
	if !ok {
		t.Fatal("Expected queue 420 to be seeded")
	}
	if label == "" {
		t.Error("Expected a non-empty label for queue 420")
	}

	_, ok, err = repo.Label(ctx, 123456)
	if err != nil {
		t.Fatalf("Failed to get queue label: %v", err)
	}
	if ok {
		t.Error("Expected unknown queue id to report ok=false")
	}
}

func TestQueueList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQueueRepository(db, zerolog.Nop())

	queues, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("Failed to list queues: %v", err)
	}
	if len(queues) == 0 {
		t.Fatal("Expected seeded queues")
	}
}
