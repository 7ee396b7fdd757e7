package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/situation-hq/situation-monitor/internal/aggregate"
	"github.com/situation-hq/situation-monitor/internal/cache"
	"github.com/situation-hq/situation-monitor/internal/domain"
	"github.com/situation-hq/situation-monitor/internal/snapshot"
)

// stubAggregator returns a scripted result and counts calls.
type stubAggregator struct {
	result   aggregate.Result
	health   map[string]domain.SourceHealth
	calls    atomic.Int32
	lastOpts aggregate.Options
}

func (s *stubAggregator) Aggregate(_ context.Context, opts aggregate.Options) aggregate.Result {
	s.calls.Add(1)
	s.lastOpts = opts
	return s.result
}

func (s *stubAggregator) Health() map[string]domain.SourceHealth { return s.health }

type memSnapshots struct {
	batches map[string]snapshot.Batch
	saves   int
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{batches: make(map[string]snapshot.Batch)}
}

func (m *memSnapshots) Save(key string, batch snapshot.Batch) error {
	if batch.SavedAt.IsZero() {
		batch.SavedAt = time.Now()
	}
	m.batches[key] = batch
	m.saves++
	return nil
}

func (m *memSnapshots) Load(key string) (snapshot.Batch, error) {
	batch, ok := m.batches[key]
	if !ok {
		return snapshot.Batch{}, snapshot.ErrNotFound
	}
	return batch, nil
}

func goodResult() aggregate.Result {
	return aggregate.Result{
		Articles: []domain.Article{{
			ID:          "rss-abc",
			Title:       "Ceasefire talks resume",
			Source:      "Test Wire",
			SourceID:    "test-wire",
			URL:         "https://example.com/talks",
			PublishedAt: time.Now().Add(-time.Hour),
			Category:    domain.CategoryGeopolitics,
		}},
		Sources:     []string{"RSS Feeds"},
		Errors:      []string{},
		FetchTimeMs: 42,
	}
}

func newTestServer(agg Aggregator, snaps Snapshots) *Server {
	return New(Config{CacheTTL: 90 * time.Second}, agg, cache.New(), snaps, nil, nil, nil)
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeNews(t *testing.T, rec *httptest.ResponseRecorder) newsResponse {
	t.Helper()
	var resp newsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestNewsSecondCallServedFromCache(t *testing.T) {
	agg := &stubAggregator{result: goodResult()}
	h := newTestServer(agg, nil).Router()

	first := doGet(t, h, "/api/news")
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first call X-Cache = %q, want MISS", got)
	}

	second := doGet(t, h, "/api/news")
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second call X-Cache = %q, want HIT", got)
	}
	if second.Header().Get("X-Cache-Age") == "" {
		t.Error("cache hit should report its age")
	}
	if agg.calls.Load() != 1 {
		t.Errorf("aggregator called %d times, want 1", agg.calls.Load())
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached body differs from original")
	}
}

func TestNewsUnexpectedCacheValueFetchesFresh(t *testing.T) {
	agg := &stubAggregator{result: goodResult()}
	c := cache.New()
	c.Set("news:all:default", "not a batch", time.Minute)
	srv := New(Config{CacheTTL: 90 * time.Second}, agg, c, nil, nil, nil, nil)

	rec := doGet(t, srv.Router(), "/api/news")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	if agg.calls.Load() != 1 {
		t.Errorf("aggregator called %d times, want 1", agg.calls.Load())
	}
	if resp := decodeNews(t, rec); len(resp.Articles) != 1 {
		t.Errorf("fresh batch not served: %+v", resp)
	}
}

func TestNewsRefreshBypassesCache(t *testing.T) {
	agg := &stubAggregator{result: goodResult()}
	h := newTestServer(agg, nil).Router()

	doGet(t, h, "/api/news")
	rec := doGet(t, h, "/api/news?refresh=true")

	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("refresh call X-Cache = %q, want MISS", got)
	}
	if agg.calls.Load() != 2 {
		t.Errorf("aggregator called %d times, want 2", agg.calls.Load())
	}
}

func TestNewsCategoryAndQueryAreSeparateKeys(t *testing.T) {
	agg := &stubAggregator{result: goodResult()}
	h := newTestServer(agg, nil).Router()

	doGet(t, h, "/api/news?category=war")
	doGet(t, h, "/api/news?category=economy")
	doGet(t, h, "/api/news?category=war&q=sanctions")
	doGet(t, h, "/api/news?category=war")

	// Three distinct keys, one repeat.
	if agg.calls.Load() != 3 {
		t.Errorf("aggregator called %d times, want 3", agg.calls.Load())
	}
	if agg.lastOpts.Category != domain.CategoryWar || agg.lastOpts.Query != "sanctions" {
		t.Errorf("options not forwarded: %+v", agg.lastOpts)
	}
}

func TestNewsRejectsUnknownCategory(t *testing.T) {
	agg := &stubAggregator{result: goodResult()}
	h := newTestServer(agg, nil).Router()

	rec := doGet(t, h, "/api/news?category=sports")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if agg.calls.Load() != 0 {
		t.Error("invalid category must not reach the aggregator")
	}
}

func TestNewsTotalFailureServesStaleSnapshot(t *testing.T) {
	snaps := newMemSnapshots()
	savedAt := time.Now().Add(-30 * time.Minute)
	snaps.batches["news:all:default"] = snapshot.Batch{
		Articles: goodResult().Articles,
		Sources:  []string{"RSS Feeds"},
		SavedAt:  savedAt,
	}

	agg := &stubAggregator{result: aggregate.Result{
		Articles: []domain.Article{},
		Sources:  []string{},
		Errors:   []string{"RSS Feeds: dns failure", "NewsAPI: bad key"},
	}}
	h := newTestServer(agg, snaps).Router()

	rec := doGet(t, h, "/api/news")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Cache"); got != "STALE" {
		t.Errorf("X-Cache = %q, want STALE", got)
	}

	resp := decodeNews(t, rec)
	if !resp.Stale {
		t.Error("response should be marked stale")
	}
	if len(resp.Articles) != 1 {
		t.Errorf("stale articles lost: %d", len(resp.Articles))
	}
	if len(resp.Errors) != 2 {
		t.Errorf("live errors should ride along, got %v", resp.Errors)
	}
	if resp.SavedAt == nil || !resp.SavedAt.Equal(savedAt) {
		t.Errorf("savedAt = %v, want %v", resp.SavedAt, savedAt)
	}
}

func TestNewsTotalFailureWithoutSnapshotIsNotCached(t *testing.T) {
	agg := &stubAggregator{result: aggregate.Result{
		Articles: []domain.Article{},
		Sources:  []string{},
		Errors:   []string{"RSS Feeds: dns failure"},
	}}
	h := newTestServer(agg, newMemSnapshots()).Router()

	rec := doGet(t, h, "/api/news")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeNews(t, rec)
	if resp.Stale || len(resp.Articles) != 0 || len(resp.Errors) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}

	// Failed batches must not poison the cache.
	doGet(t, h, "/api/news")
	if agg.calls.Load() != 2 {
		t.Errorf("aggregator called %d times, want 2", agg.calls.Load())
	}
}

func TestNewsSuccessPersistsSnapshot(t *testing.T) {
	snaps := newMemSnapshots()
	agg := &stubAggregator{result: goodResult()}
	h := newTestServer(agg, snaps).Router()

	doGet(t, h, "/api/news?category=war")

	if snaps.saves != 1 {
		t.Fatalf("expected 1 snapshot save, got %d", snaps.saves)
	}
	if _, ok := snaps.batches["news:war:default"]; !ok {
		t.Errorf("snapshot stored under wrong key: %v", snaps.batches)
	}
}

func TestNewsBatchHeaders(t *testing.T) {
	agg := &stubAggregator{result: goodResult()}
	h := newTestServer(agg, nil).Router()

	rec := doGet(t, h, "/api/news")
	if got := rec.Header().Get("X-Sources"); got != "1" {
		t.Errorf("X-Sources = %q", got)
	}
	if got := rec.Header().Get("X-Fetch-Time"); got != "42" {
		t.Errorf("X-Fetch-Time = %q", got)
	}
}

func TestSourceHealthEndpoint(t *testing.T) {
	agg := &stubAggregator{
		result: goodResult(),
		health: map[string]domain.SourceHealth{
			"rss": {ErrorCount: 2, LastUsed: time.Now()},
		},
	}
	h := newTestServer(agg, nil).Router()

	rec := doGet(t, h, "/api/sources/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var health map[string]domain.SourceHealth
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["rss"].ErrorCount != 2 {
		t.Errorf("health payload wrong: %+v", health)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(&stubAggregator{}, nil).Router()
	rec := doGet(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		category domain.Category
		query    string
		want     string
	}{
		{"", "", "news:all:default"},
		{domain.CategoryWar, "", "news:war:default"},
		{"", "sanctions", "news:all:sanctions"},
		{domain.CategoryEconomy, "inflation", "news:economy:inflation"},
	}
	for _, tt := range tests {
		if got := CacheKey(tt.category, tt.query); got != tt.want {
			t.Errorf("CacheKey(%q, %q) = %q, want %q", tt.category, tt.query, got, tt.want)
		}
	}
}
