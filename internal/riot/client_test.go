package riot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"lol-stats-tracker/internal/config"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(&config.Config{RiotAPIKey: "test-key"}, zerolog.Nop())
	c.baseURL = srv.URL
	return c
}

func TestGetAccountByRiotID(t *testing.T) {
	var gotPath, gotToken string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Riot-Token")
		w.Write([]byte(`{"puuid":"puuid-1","gameName":"Faker","tagLine":"KR1"}`))
	}))

	account, err := c.GetAccountByRiotID(context.Background(), "asia", "Faker", "KR1")
	if err != nil {
		t.Fatalf("Failed to get account: %v", err)
	}
	if account.Puuid != "puuid-1" {
		t.Errorf("Expected puuid-1, got %s", account.Puuid)
	}
	if gotPath != "/riot/account/v1/accounts/by-riot-id/Faker/KR1" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotToken != "test-key" {
		t.Errorf("Expected api key header, got %q", gotToken)
	}
}

func TestListMatchIDsOrdersOldestFirst(t *testing.T) {
	// Match-v5 returns newest first.
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["EUW1_3","EUW1_2","EUW1_1"]`))
	}))

	ids, err := c.ListMatchIDs(context.Background(), "europe", "puuid-1", 0, 100, 20)
	if err != nil {
		t.Fatalf("Failed to list match ids: %v", err)
	}
	want := []string{"EUW1_1", "EUW1_2", "EUW1_3"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Expected ids[%d]=%s, got %s", i, want[i], ids[i])
		}
	}
}

func TestListMatchIDsCapsPageSize(t *testing.T) {
	var gotCount string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCount = r.URL.Query().Get("count")
		w.Write([]byte(`[]`))
	}))

	if _, err := c.ListMatchIDs(context.Background(), "europe", "puuid-1", 0, 100, 500); err != nil {
		t.Fatalf("Failed to list match ids: %v", err)
	}
	if gotCount != "100" {
		t.Errorf("Expected count capped at 100, got %s", gotCount)
	}
}

func TestGetMatchNotFoundIsPermanent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetMatch(context.Background(), "europe", "EUW1_404")
	if err == nil {
		t.Fatal("Expected an error for a missing match")
	}
	if !IsPermanent(err) {
		t.Errorf("Expected a permanent error, got %v", err)
	}
	if IsTransient(err) {
		t.Error("Expected the error not to classify as transient")
	}
}

func TestGetMatchMalformedPayloadIsPermanent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))

	_, err := c.GetMatch(context.Background(), "europe", "EUW1_1")
	if err == nil {
		t.Fatal("Expected an error for a malformed payload")
	}
	if !IsPermanent(err) {
		t.Errorf("Expected a permanent error, got %v", err)
	}
}

func TestClientRecordsRateLimitHeaders(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-App-Rate-Limit", "20:1,100:120")
		w.Header().Set("X-App-Rate-Limit-Count", "1:1,5:120")
		w.Write([]byte(`[]`))
	}))

	if _, err := c.ListMatchIDs(context.Background(), "europe", "puuid-1", 0, 100, 20); err != nil {
		t.Fatalf("Failed to list match ids: %v", err)
	}

	info := c.GetRateLimitInfo()
	if info.AppLimit != "20:1,100:120" {
		t.Errorf("Expected app limit header mirrored, got %q", info.AppLimit)
	}
	if info.AppCount != "1:1,5:120" {
		t.Errorf("Expected app count header mirrored, got %q", info.AppCount)
	}
}
