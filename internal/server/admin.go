package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lol-stats-tracker/internal/constants"
	"lol-stats-tracker/internal/repository"
	"lol-stats-tracker/internal/riot"
	"lol-stats-tracker/internal/service"

	"github.com/rs/zerolog"
)

// AdminServer is the operational surface: health, last-run status, current
// records, and provider rate budget. It serves no analytics.
type AdminServer struct {
	ingestSvc  *service.IngestService
	recordSvc  *service.RecordService
	stateRepo  *repository.IngestStateRepository
	playerRepo *repository.PlayerRepository
	client     *riot.Client
	logger     zerolog.Logger
}

func NewAdminServer(
	ingestSvc *service.IngestService,
	recordSvc *service.RecordService,
	stateRepo *repository.IngestStateRepository,
	playerRepo *repository.PlayerRepository,
	client *riot.Client,
	logger zerolog.Logger,
) *AdminServer {
	return &AdminServer{
		ingestSvc:  ingestSvc,
		recordSvc:  recordSvc,
		stateRepo:  stateRepo,
		playerRepo: playerRepo,
		client:     client,
		logger:     logger,
	}
}

func (s *AdminServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /records", s.handleRecords)
	mux.HandleFunc("GET /ratelimit", s.handleRateLimit)
	return mux
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type statusResponse struct {
	LastRun     any            `json:"last_run"`
	Players     []playerStatus `json:"players"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type playerStatus struct {
	Puuid      string     `json:"puuid"`
	RiotID     string     `json:"riot_id"`
	Platform   string     `json:"platform"`
	Routing    string     `json:"routing"`
	Checkpoint *int64     `json:"checkpoint,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	players, err := s.playerRepo.List(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	states, err := s.stateRepo.List(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	checkpoints := make(map[string]int64, len(states))
	for _, st := range states {
		checkpoints[st.Puuid] = st.LastEndTimeTS
	}

	resp := statusResponse{
		LastRun:     s.ingestSvc.LastRun(),
		GeneratedAt: time.Now(),
	}
	for _, p := range players {
		ps := playerStatus{
			Puuid:      p.Puuid,
			RiotID:     p.RiotID,
			Platform:   p.Platform,
			Routing:    p.Routing,
			LastSeenAt: p.LastSeenAt,
		}
		if cp, ok := checkpoints[p.Puuid]; ok {
			ps.Checkpoint = &cp
		}
		resp.Players = append(resp.Players, ps)
	}

	s.writeJSON(w, resp)
}

func (s *AdminServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	records, err := s.recordSvc.List(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, records)
}

func (s *AdminServer) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.client.GetRateLimitInfo())
}

func (s *AdminServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *AdminServer) writeError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("admin request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
