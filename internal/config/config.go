package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"lol-stats-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RiotAPIKey     string
	DBPath         string
	RosterPath     string
	AdminPort      string
	LogLevel       string
	IngestInterval time.Duration
	RunOnce        bool

	Roster *Roster
}

// Roster is the declarative ingestion roster, loaded from a YAML file that
// mirrors the shape other tooling already reads.
type Roster struct {
	Riot struct {
		Regions       map[string]Region      `yaml:"regions"`
		EnabledQueues map[string]QueueConfig `yaml:"enabled_queues"`
	} `yaml:"riot"`
	App struct {
		LookbackDays        int `yaml:"lookback_days"`
		MaxMatchesPerPlayer int `yaml:"max_matches_per_player"`
	} `yaml:"app"`
	Players []PlayerConfig `yaml:"players"`
}

type Region struct {
	Routing string `yaml:"routing"`
}

type QueueConfig struct {
	ID    int64  `yaml:"id"`
	Label string `yaml:"label"`
}

type PlayerConfig struct {
	RiotID    string `yaml:"riot_id"`
	Platform  string `yaml:"platform"`
	Overrides struct {
		EnabledQueues map[string]QueueConfig `yaml:"enabled_queues"`
	} `yaml:"overrides"`
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		RiotAPIKey:     getEnv("RIOT_API_KEY", ""),
		DBPath:         getEnv("DB_PATH", "stats.db"),
		RosterPath:     getEnv("ROSTER_PATH", "config.yaml"),
		AdminPort:      getEnv("ADMIN_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		IngestInterval: getDurationEnv("INGEST_INTERVAL", constants.DefaultIngestEvery),
		RunOnce:        getBoolEnv("RUN_ONCE", false),
	}

	if cfg.RiotAPIKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY is required")
	}

	roster, err := LoadRoster(cfg.RosterPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	cfg.Roster = roster

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("roster_path", cfg.RosterPath).
		Str("admin_port", cfg.AdminPort).
		Str("log_level", cfg.LogLevel).
		Dur("ingest_interval", cfg.IngestInterval).
		Int("players", len(roster.Players)).
		Msg("configuration loaded")

	return cfg, nil
}

func LoadRoster(path string) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	var roster Roster
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	if roster.App.LookbackDays <= 0 {
		roster.App.LookbackDays = constants.DefaultLookbackDays
	}
	if roster.App.MaxMatchesPerPlayer <= 0 {
		roster.App.MaxMatchesPerPlayer = constants.DefaultMatchCap
	}

	for _, p := range roster.Players {
		if _, ok := roster.Riot.Regions[p.Platform]; !ok {
			return nil, fmt.Errorf("platform %q for player %q not defined under riot.regions", p.Platform, p.RiotID)
		}
	}

	return &roster, nil
}

// RoutingFor resolves the routing region for a platform, e.g. euw1 -> europe.
func (r *Roster) RoutingFor(platform string) (string, error) {
	region, ok := r.Riot.Regions[platform]
	if !ok {
		return "", fmt.Errorf("platform %q not defined under riot.regions", platform)
	}
	return region.Routing, nil
}

// EnabledQueueIDs returns the queue ids that produce stat rows for a player,
// honoring the player's overrides when present.
func (r *Roster) EnabledQueueIDs(player *PlayerConfig) map[int64]bool {
	src := r.Riot.EnabledQueues
	if player != nil && len(player.Overrides.EnabledQueues) > 0 {
		src = player.Overrides.EnabledQueues
	}

	ids := make(map[int64]bool, len(src))
	for _, q := range src {
		ids[q.ID] = true
	}
	return ids
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
