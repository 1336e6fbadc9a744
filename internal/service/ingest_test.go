package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"lol-stats-tracker/internal/config"
	"lol-stats-tracker/internal/database"
	"lol-stats-tracker/internal/domain"
	"lol-stats-tracker/internal/repository"
	"lol-stats-tracker/internal/riot"

	"github.com/rs/zerolog"
)

const testNow = int64(1_700_000_000)

type fakeProvider struct {
	mu         sync.Mutex
	accounts   map[string]string // "name#tag" -> puuid
	ids        map[string][]string
	matches    map[string]*riot.Match
	matchErr   map[string]error
	listErr    map[string]error
	matchCalls map[string]int
	listCalls  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:   make(map[string]string),
		ids:        make(map[string][]string),
		matches:    make(map[string]*riot.Match),
		matchErr:   make(map[string]error),
		listErr:    make(map[string]error),
		matchCalls: make(map[string]int),
	}
}

func (f *fakeProvider) GetAccountByRiotID(ctx context.Context, routing, name, tag string) (*riot.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	puuid, ok := f.accounts[name+"#"+tag]
	if !ok {
		return nil, &riot.PermanentError{Status: 404}
	}
	return &riot.Account{Puuid: puuid, GameName: name, TagLine: tag}, nil
}

func (f *fakeProvider) ListMatchIDs(ctx context.Context, routing, puuid string, startTime, endTime int64, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.listErr[puuid]; err != nil {
		return nil, err
	}
	return f.ids[puuid], nil
}

func (f *fakeProvider) GetMatch(ctx context.Context, routing, matchID string) (*riot.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchCalls[matchID]++
	if err := f.matchErr[matchID]; err != nil {
		return nil, err
	}
	m, ok := f.matches[matchID]
	if !ok {
		return nil, &riot.PermanentError{Status: 404}
	}
	return m, nil
}

func (f *fakeProvider) calls(matchID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matchCalls[matchID]
}

// matchPayload builds a Match-v5 payload whose game started at startTS
// (seconds) in the given queue, with one participant entry per puuid.
func matchPayload(matchID string, startTS, queueID int64, puuids ...string) *riot.Match {
	m := &riot.Match{}
	m.Metadata.MatchID = matchID
	m.Metadata.Participants = puuids
	m.Info.GameStartTimestamp = startTS * 1000
	m.Info.GameDuration = 1800
	m.Info.QueueID = &queueID
	m.Info.GameMode = "CLASSIC"
	m.Info.GameType = "MATCHED_GAME"
	m.Info.GameVersion = "14.3.558.4869"
	m.Info.PlatformID = "EUW1"
	for i, puuid := range puuids {
		kills := int64(5 + i)
		dmg := int64(10000 * (i + 1))
		m.Info.Participants = append(m.Info.Participants, riot.Participant{
			Puuid:                       puuid,
			Win:                         i == 0,
			ChampionName:                "Ahri",
			Kills:                       kills,
			Deaths:                      3,
			Assists:                     4,
			TotalMinionsKilled:          150,
			NeutralMinionsKilled:        20,
			TotalDamageDealtToChampions: &dmg,
		})
	}
	return m
}

func testRoster(players ...config.PlayerConfig) *config.Roster {
	roster := &config.Roster{}
	roster.Riot.Regions = map[string]config.Region{"euw1": {Routing: "europe"}}
	roster.Riot.EnabledQueues = map[string]config.QueueConfig{
		"ranked_solo": {ID: 420, Label: "Ranked Solo/Duo"},
	}
	roster.App.LookbackDays = 7
	roster.App.MaxMatchesPerPlayer = 70
	roster.Players = players
	return roster
}

type ingestEnv struct {
	db       *sql.DB
	provider *fakeProvider
	svc      *IngestService
	players  *repository.PlayerRepository
	matches  *repository.MatchRepository
	state    *repository.IngestStateRepository
	records  *repository.RecordRepository
}

func setupIngest(t *testing.T, roster *config.Roster, provider *fakeProvider) *ingestEnv {
	t.Helper()

	cfg := &config.Config{DBPath: t.TempDir() + "/test.db", Roster: roster}
	db, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	nop := zerolog.Nop()
	players := repository.NewPlayerRepository(db, nop)
	matches := repository.NewMatchRepository(db, nop)
	state := repository.NewIngestStateRepository(db, nop)
	records := repository.NewRecordRepository(db, nop)

	rosterSvc := NewRosterService(provider, players, cfg, nop)
	recordSvc := NewRecordService(records, nop)
	svc := NewIngestService(provider, rosterSvc, players, matches, state, recordSvc, cfg, nop)
	svc.now = func() time.Time { return time.Unix(testNow, 0) }

	return &ingestEnv{
		db:       db,
		provider: provider,
		svc:      svc,
		players:  players,
		matches:  matches,
		state:    state,
		records:  records,
	}
}

func playerEntry(riotID string) config.PlayerConfig {
	return config.PlayerConfig{RiotID: riotID, Platform: "euw1"}
}

func resultFor(report *domain.RunReport, riotID string) *domain.PlayerRunResult {
	for i := range report.Players {
		if report.Players[i].RiotID == riotID {
			return &report.Players[i]
		}
	}
	return nil
}

func TestRunFirstWindow(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.ids["puuid-a"] = []string{"EUW1_1", "EUW1_2"}
	provider.matches["EUW1_1"] = matchPayload("EUW1_1", 100, 420, "puuid-a", "stranger")
	provider.matches["EUW1_2"] = matchPayload("EUW1_2", 200, 420, "puuid-a")

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW")), provider)
	ctx := context.Background()

	report, err := env.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Failed to run ingestion pass: %v", err)
	}

	res := resultFor(report, "Alpha#EUW")
	if res == nil {
		t.Fatal("Expected a result for Alpha#EUW")
	}
	if res.Status != domain.RunStatusOK {
		t.Fatalf("Expected status ok, got %s (%s)", res.Status, res.Err)
	}
	if res.NewMatches != 2 || res.NewStats != 2 {
		t.Errorf("Expected 2 new matches and 2 new stats, got %d/%d", res.NewMatches, res.NewStats)
	}
	if res.Checkpoint != 200 {
		t.Errorf("Expected checkpoint at last match start 200, got %d", res.Checkpoint)
	}

	// The untracked participant produced no fact row.
	has, err := env.matches.HasStat(ctx, "stranger", "EUW1_1")
	if err != nil {
		t.Fatalf("Failed to check stat: %v", err)
	}
	if has {
		t.Error("Expected no fact row for an untracked participant")
	}

	// The checkpoint never advances to now.
	ts, ok, err := env.state.Get(ctx, "puuid-a")
	if err != nil {
		t.Fatalf("Failed to get checkpoint: %v", err)
	}
	if !ok || ts != 200 {
		t.Errorf("Expected stored checkpoint 200, got %d (ok=%v)", ts, ok)
	}

	// Records observed the new fact rows.
	rec, err := env.records.Get(ctx, "global:kills")
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if rec == nil || rec.Value != 5 {
		t.Fatalf("Expected kills record 5, got %+v", rec)
	}

	// A successful window touches last_seen_at.
	p, err := env.players.Get(ctx, "puuid-a")
	if err != nil {
		t.Fatalf("Failed to get player: %v", err)
	}
	if p.LastSeenAt == nil {
		t.Error("Expected last_seen_at to be set after a successful window")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.ids["puuid-a"] = []string{"EUW1_1", "EUW1_2"}
	provider.matches["EUW1_1"] = matchPayload("EUW1_1", 100, 420, "puuid-a")
	provider.matches["EUW1_2"] = matchPayload("EUW1_2", 200, 420, "puuid-a")

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW")), provider)
	ctx := context.Background()

	if _, err := env.svc.Run(ctx); err != nil {
		t.Fatalf("Failed to run first pass: %v", err)
	}

	report, err := env.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Failed to run second pass: %v", err)
	}

	res := resultFor(report, "Alpha#EUW")
	if res.Status != domain.RunStatusOK {
		t.Fatalf("Expected status ok, got %s (%s)", res.Status, res.Err)
	}
	if res.NewMatches != 0 || res.NewStats != 0 {
		t.Errorf("Expected no new rows on re-ingestion, got %d/%d", res.NewMatches, res.NewStats)
	}
	if res.Checkpoint != 200 {
		t.Errorf("Expected checkpoint unchanged at 200, got %d", res.Checkpoint)
	}

	// Already-ingested matches are never refetched.
	if n := provider.calls("EUW1_1"); n != 1 {
		t.Errorf("Expected EUW1_1 fetched once, got %d", n)
	}
	if n := provider.calls("EUW1_2"); n != 1 {
		t.Errorf("Expected EUW1_2 fetched once, got %d", n)
	}

	count, err := env.matches.CountStats(ctx, "puuid-a")
	if err != nil {
		t.Fatalf("Failed to count stats: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected exactly 2 stat rows, got %d", count)
	}
}

func TestRunPicksUpOnlyNewMatches(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.ids["puuid-a"] = []string{"EUW1_1", "EUW1_2"}
	provider.matches["EUW1_1"] = matchPayload("EUW1_1", 100, 420, "puuid-a")
	provider.matches["EUW1_2"] = matchPayload("EUW1_2", 200, 420, "puuid-a")

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW")), provider)
	ctx := context.Background()

	if _, err := env.svc.Run(ctx); err != nil {
		t.Fatalf("Failed to run first pass: %v", err)
	}

	// A new match lands between passes.
	provider.mu.Lock()
	provider.ids["puuid-a"] = []string{"EUW1_1", "EUW1_2", "EUW1_3"}
	provider.matches["EUW1_3"] = matchPayload("EUW1_3", 300, 420, "puuid-a")
	provider.mu.Unlock()

	report, err := env.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Failed to run second pass: %v", err)
	}

	res := resultFor(report, "Alpha#EUW")
	if res.NewMatches != 1 || res.NewStats != 1 {
		t.Errorf("Expected only the new match written, got %d/%d", res.NewMatches, res.NewStats)
	}
	if res.Checkpoint != 300 {
		t.Errorf("Expected checkpoint 300, got %d", res.Checkpoint)
	}
	if n := provider.calls("EUW1_1"); n != 1 {
		t.Errorf("Expected the committed prefix not to be refetched, EUW1_1 fetched %d times", n)
	}
}

func TestRunSharedMatchAcrossPlayers(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.accounts["Beta#EUW"] = "puuid-b"
	shared := matchPayload("EUW1_1", 100, 420, "puuid-a", "puuid-b")
	provider.matches["EUW1_1"] = shared
	provider.ids["puuid-a"] = []string{"EUW1_1"}
	provider.ids["puuid-b"] = []string{"EUW1_1"}

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW"), playerEntry("Beta#EUW")), provider)
	ctx := context.Background()

	if _, err := env.svc.Run(ctx); err != nil {
		t.Fatalf("Failed to run pass: %v", err)
	}

	// One shared match row, one fact row per tracked participant.
	for _, puuid := range []string{"puuid-a", "puuid-b"} {
		has, err := env.matches.HasStat(ctx, puuid, "EUW1_1")
		if err != nil {
			t.Fatalf("Failed to check stat: %v", err)
		}
		if !has {
			t.Errorf("Expected a fact row for %s", puuid)
		}
		count, err := env.matches.CountStats(ctx, puuid)
		if err != nil {
			t.Fatalf("Failed to count stats: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected exactly 1 stat row for %s, got %d", puuid, count)
		}
	}

	// Both checkpoints advanced past the shared match.
	for _, puuid := range []string{"puuid-a", "puuid-b"} {
		ts, ok, err := env.state.Get(ctx, puuid)
		if err != nil {
			t.Fatalf("Failed to get checkpoint: %v", err)
		}
		if !ok || ts != 100 {
			t.Errorf("Expected checkpoint 100 for %s, got %d (ok=%v)", puuid, ts, ok)
		}
	}

	// A second pass fetches nothing new.
	before := provider.calls("EUW1_1")
	if _, err := env.svc.Run(ctx); err != nil {
		t.Fatalf("Failed to run second pass: %v", err)
	}
	if after := provider.calls("EUW1_1"); after != before {
		t.Errorf("Expected no refetch of the shared match, calls went %d -> %d", before, after)
	}
}

func TestRunResumesAfterMidWindowFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.ids["puuid-a"] = []string{"EUW1_1", "EUW1_2", "EUW1_3"}
	provider.matches["EUW1_1"] = matchPayload("EUW1_1", 100, 420, "puuid-a")
	provider.matches["EUW1_2"] = matchPayload("EUW1_2", 200, 420, "puuid-a")
	provider.matches["EUW1_3"] = matchPayload("EUW1_3", 300, 420, "puuid-a")
	provider.matchErr["EUW1_3"] = &riot.TransientError{Status: 503}

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW")), provider)
	ctx := context.Background()

	report, err := env.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Failed to run first pass: %v", err)
	}

	res := resultFor(report, "Alpha#EUW")
	if res.Status != domain.RunStatusFailed {
		t.Fatalf("Expected status failed, got %s", res.Status)
	}

	// The first two matches are durably committed, but the checkpoint is
	// untouched because the window did not complete.
	for _, id := range []string{"EUW1_1", "EUW1_2"} {
		has, err := env.matches.HasStat(ctx, "puuid-a", id)
		if err != nil {
			t.Fatalf("Failed to check stat: %v", err)
		}
		if !has {
			t.Errorf("Expected committed stat for %s", id)
		}
	}
	if _, ok, err := env.state.Get(ctx, "puuid-a"); err != nil {
		t.Fatalf("Failed to get checkpoint: %v", err)
	} else if ok {
		t.Error("Expected no checkpoint after an aborted window")
	}

	// The provider recovers; the next pass re-examines the committed prefix
	// without refetching it and completes the window.
	delete(provider.matchErr, "EUW1_3")

	report, err = env.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Failed to run second pass: %v", err)
	}
	res = resultFor(report, "Alpha#EUW")
	if res.Status != domain.RunStatusOK {
		t.Fatalf("Expected status ok, got %s (%s)", res.Status, res.Err)
	}
	if res.NewMatches != 1 || res.NewStats != 1 {
		t.Errorf("Expected only the third match to be new, got %d/%d", res.NewMatches, res.NewStats)
	}
	if res.Checkpoint != 300 {
		t.Errorf("Expected checkpoint 300, got %d", res.Checkpoint)
	}

	if n := provider.calls("EUW1_1"); n != 1 {
		t.Errorf("Expected EUW1_1 fetched once across both passes, got %d", n)
	}
	count, err := env.matches.CountStats(ctx, "puuid-a")
	if err != nil {
		t.Fatalf("Failed to count stats: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 stat rows, got %d", count)
	}
}

func TestRunQueueFilterStillAdvancesCheckpoint(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.ids["puuid-a"] = []string{"EUW1_1"}
	// Queue 999 is not enabled for anyone.
	provider.matches["EUW1_1"] = matchPayload("EUW1_1", 100, 999, "puuid-a")

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW")), provider)
	ctx := context.Background()

	report, err := env.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Failed to run pass: %v", err)
	}

	res := resultFor(report, "Alpha#EUW")
	if res.Status != domain.RunStatusOK {
		t.Fatalf("Expected status ok, got %s (%s)", res.Status, res.Err)
	}
	if res.NewMatches != 0 || res.NewStats != 0 {
		t.Errorf("Expected nothing written for a filtered queue, got %d/%d", res.NewMatches, res.NewStats)
	}

	// The window still moves past the filtered match.
	ts, ok, err := env.state.Get(ctx, "puuid-a")
	if err != nil {
		t.Fatalf("Failed to get checkpoint: %v", err)
	}
	if !ok || ts != 100 {
		t.Errorf("Expected checkpoint 100, got %d (ok=%v)", ts, ok)
	}
}

func TestRunQueueOverridePerPlayer(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.accounts["Beta#EUW"] = "puuid-b"
	provider.matches["EUW1_1"] = matchPayload("EUW1_1", 100, 450, "puuid-a", "puuid-b")
	provider.ids["puuid-b"] = []string{"EUW1_1"}

	beta := playerEntry("Beta#EUW")
	beta.Overrides.EnabledQueues = map[string]config.QueueConfig{
		"aram": {ID: 450, Label: "ARAM"},
	}

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW"), beta), provider)
	ctx := context.Background()

	if _, err := env.svc.Run(ctx); err != nil {
		t.Fatalf("Failed to run pass: %v", err)
	}

	// Queue 450 is enabled only through Beta's override; Alpha's defaults
	// exclude it even though Alpha played in the match.
	hasA, err := env.matches.HasStat(ctx, "puuid-a", "EUW1_1")
	if err != nil {
		t.Fatalf("Failed to check stat: %v", err)
	}
	if hasA {
		t.Error("Expected no fact row for Alpha in an ARAM match")
	}
	hasB, err := env.matches.HasStat(ctx, "puuid-b", "EUW1_1")
	if err != nil {
		t.Fatalf("Failed to check stat: %v", err)
	}
	if !hasB {
		t.Error("Expected a fact row for Beta via queue override")
	}
}

func TestRunPermanentErrorSkipsPlayer(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.accounts["Beta#EUW"] = "puuid-b"
	provider.listErr["puuid-a"] = &riot.PermanentError{Status: 404}
	provider.ids["puuid-b"] = []string{"EUW1_1"}
	provider.matches["EUW1_1"] = matchPayload("EUW1_1", 100, 420, "puuid-b")

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW"), playerEntry("Beta#EUW")), provider)

	report, err := env.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Failed to run pass: %v", err)
	}

	if res := resultFor(report, "Alpha#EUW"); res.Status != domain.RunStatusSkipped {
		t.Errorf("Expected Alpha skipped, got %s", res.Status)
	}
	if res := resultFor(report, "Beta#EUW"); res.Status != domain.RunStatusOK {
		t.Errorf("Expected Beta ok, got %s (%s)", res.Status, res.Err)
	}
}

func TestRunTransientErrorIsolatedPerPlayer(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.accounts["Beta#EUW"] = "puuid-b"
	provider.listErr["puuid-a"] = &riot.TransientError{Err: fmt.Errorf("connection reset")}
	provider.ids["puuid-b"] = []string{"EUW1_1"}
	provider.matches["EUW1_1"] = matchPayload("EUW1_1", 100, 420, "puuid-b")

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW"), playerEntry("Beta#EUW")), provider)

	report, err := env.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Failed to run pass: %v", err)
	}
	if !report.Failed() {
		t.Error("Expected the run report to flag a failure")
	}

	if res := resultFor(report, "Alpha#EUW"); res.Status != domain.RunStatusFailed {
		t.Errorf("Expected Alpha failed, got %s", res.Status)
	}
	if res := resultFor(report, "Beta#EUW"); res.Status != domain.RunStatusOK {
		t.Errorf("Expected Beta ok, got %s (%s)", res.Status, res.Err)
	}
}

func TestRunBadRosterHandleSkipped(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.ids["puuid-a"] = []string{}

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW"), playerEntry("NoTagHere")), provider)

	report, err := env.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Failed to run pass: %v", err)
	}

	if res := resultFor(report, "NoTagHere"); res == nil || res.Status != domain.RunStatusSkipped {
		t.Errorf("Expected malformed roster entry skipped, got %+v", res)
	}
	if res := resultFor(report, "Alpha#EUW"); res.Status != domain.RunStatusOK {
		t.Errorf("Expected Alpha ok, got %s (%s)", res.Status, res.Err)
	}
}

func TestRunKnownPlayerSkipsAccountLookup(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.ids["puuid-a"] = []string{}

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW")), provider)
	ctx := context.Background()

	if _, err := env.svc.Run(ctx); err != nil {
		t.Fatalf("Failed to run first pass: %v", err)
	}

	// Once registered, the player resolves from storage alone.
	provider.mu.Lock()
	delete(provider.accounts, "Alpha#EUW")
	provider.mu.Unlock()

	report, err := env.svc.Run(ctx)
	if err != nil {
		t.Fatalf("Failed to run second pass: %v", err)
	}
	if res := resultFor(report, "Alpha#EUW"); res.Status != domain.RunStatusOK {
		t.Errorf("Expected Alpha ok without account lookup, got %s (%s)", res.Status, res.Err)
	}
}

func TestRunStoresLastRunReport(t *testing.T) {
	provider := newFakeProvider()
	provider.accounts["Alpha#EUW"] = "puuid-a"
	provider.ids["puuid-a"] = []string{}

	env := setupIngest(t, testRoster(playerEntry("Alpha#EUW")), provider)

	if env.svc.LastRun() != nil {
		t.Error("Expected no report before the first pass")
	}

	report, err := env.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Failed to run pass: %v", err)
	}
	if got := env.svc.LastRun(); got == nil || got.RunID != report.RunID {
		t.Errorf("Expected LastRun to return the latest report, got %+v", got)
	}
}
