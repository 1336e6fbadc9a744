package domain

import (
	"time"
)

// Player is a tracked roster member. The puuid is the stable identity issued
// by Riot; riot_id is the display handle "Name#TAG" and may change over time.
type Player struct {
	Puuid      string
	RiotID     string
	Platform   string
	Routing    string
	AddedAt    time.Time
	LastSeenAt *time.Time
}

// Match is a globally shared historical event. A match row is written by the
// first tracked player observed in it and never mutated afterwards.
type Match struct {
	MatchID     string
	Routing     string
	Platform    string
	QueueID     *int64
	GameStartTS *int64
	DurationS   *int64
	GameMode    string
	GameType    string
	MapID       *int64
	Patch       string
	IngestedAt  time.Time
}

// PlayerMatchStat is one fact row: the outcome of one tracked player in one
// match. Composite identity (puuid, match_id); immutable once written.
// Optional counters are nil when the provider did not report them, which is
// distinct from a reported zero.
type PlayerMatchStat struct {
	Puuid   string
	MatchID string

	Win      bool
	TeamID   *int64
	Role     *string
	Lane     *string
	Position *string

	ChampionID   *int64
	ChampionName string

	Kills   int64
	Deaths  int64
	Assists int64

	CS         int64
	GoldEarned *int64
	GoldSpent  *int64

	DmgToChamps *int64
	DmgTaken    *int64

	VisionScore *int64
	WardsPlaced *int64
	WardsKilled *int64
	TurretKills *int64

	TimeDeadS *int64

	// Denormalized from the match row for query locality.
	GameStartTS int64
	QueueID     *int64
}

// IngestState is the per-player resumption checkpoint: the timestamp up to
// which history has been fully ingested. Monotonically non-decreasing.
type IngestState struct {
	Puuid         string
	LastEndTimeTS int64
	UpdatedAt     time.Time
}

// Queue is static reference data mapping queue ids to human labels.
type Queue struct {
	QueueID int64
	Label   string
}

// Record holds the current best value for one named metric. MetaJSON carries
// context about the record holder (puuid, match_id, game_start_ts).
type Record struct {
	Key       string
	Value     float64
	MetaJSON  *string
	UpdatedAt time.Time
}

// PlayerRunStatus is the per-player outcome of one ingestion pass.
type PlayerRunStatus string

const (
	RunStatusOK      PlayerRunStatus = "ok"
	RunStatusFailed  PlayerRunStatus = "failed"
	RunStatusSkipped PlayerRunStatus = "skipped"
)

// PlayerRunResult summarizes one player's window within a run.
type PlayerRunResult struct {
	Puuid      string
	RiotID     string
	Status     PlayerRunStatus
	NewMatches int
	NewStats   int
	Checkpoint int64
	Err        string
}

// RunReport summarizes a completed ingestion pass across the roster.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Players    []PlayerRunResult
}

// Failed reports whether any player's window failed during the run.
func (r *RunReport) Failed() bool {
	for _, p := range r.Players {
		if p.Status == RunStatusFailed {
			return true
		}
	}
	return false
}
