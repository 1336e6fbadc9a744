package service

import (
	"context"

	"lol-stats-tracker/internal/riot"
)

// Provider is the slice of the remote match-history API the ingestion engine
// consumes. *riot.Client satisfies it; tests substitute fakes.
//
// ListMatchIDs must return ids ordered oldest-to-newest and may return
// duplicates across calls; GetMatch may be called more than once for the
// same id. Both are handled idempotently downstream.
type Provider interface {
	GetAccountByRiotID(ctx context.Context, routing, name, tag string) (*riot.Account, error)
	ListMatchIDs(ctx context.Context, routing, puuid string, startTime, endTime int64, count int) ([]string, error)
	GetMatch(ctx context.Context, routing, matchID string) (*riot.Match, error)
}
