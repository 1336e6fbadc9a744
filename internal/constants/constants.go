package constants

import "time"

const (
	ExternalAPITimeout = 15 * time.Second
	DatabaseTimeout    = 5 * time.Second
	IngestPassTimeout  = 10 * time.Minute
)

const (
	// MaxFetchAttempts bounds retries of a single provider call before the
	// player's window is aborted for the run.
	MaxFetchAttempts  = 6
	RetryBaseDelay    = 2 * time.Second
	RetryMaxDelay     = 30 * time.Second
	DefaultRetryAfter = 2 * time.Second
)

const (
	MatchIDPageLimit     = 100
	DefaultMatchCap      = 70
	DefaultLookbackDays  = 7
	DefaultIngestEvery   = 30 * time.Minute
	MaxConcurrentPlayers = 4
)

const (
	// Riot development keys allow 20 requests/second and 100 requests per
	// two minutes per routing region. The bucket is sized for the long window.
	RateLimitTokens = 100
	RateLimitWindow = 2 * time.Minute
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)
