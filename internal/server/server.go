package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/situation-hq/situation-monitor/internal/aggregate"
	"github.com/situation-hq/situation-monitor/internal/cache"
	"github.com/situation-hq/situation-monitor/internal/domain"
	"github.com/situation-hq/situation-monitor/internal/logger"
	"github.com/situation-hq/situation-monitor/internal/publish"
	"github.com/situation-hq/situation-monitor/internal/snapshot"
)

// Aggregator is the slice of the aggregation engine the HTTP layer needs.
type Aggregator interface {
	Aggregate(ctx context.Context, opts aggregate.Options) aggregate.Result
	Health() map[string]domain.SourceHealth
}

// Snapshots persists last-known-good batches for the stale fallback path.
type Snapshots interface {
	Save(key string, batch snapshot.Batch) error
	Load(key string) (snapshot.Batch, error)
}

// Enricher backfills article metadata before a batch is cached.
type Enricher interface {
	Enrich(ctx context.Context, articles []domain.Article, topN int) []domain.Article
}

// Config tunes the HTTP layer.
type Config struct {
	CacheTTL    time.Duration
	MaxArticles int
	EnrichTopN  int
}

// Server serves the news API. Snapshots, enricher, and broadcaster are all
// optional; a nil value disables that feature.
type Server struct {
	cfg         Config
	agg         Aggregator
	cache       *cache.Cache
	snapshots   Snapshots
	enricher    Enricher
	broadcaster *publish.Broadcaster
	log         logger.Logger
}

// New assembles a Server.
func New(cfg Config, agg Aggregator, c *cache.Cache, snapshots Snapshots, enricher Enricher, broadcaster *publish.Broadcaster, log logger.Logger) *Server {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 90 * time.Second
	}
	if c == nil {
		c = cache.New()
	}
	return &Server{
		cfg:         cfg,
		agg:         agg,
		cache:       c,
		snapshots:   snapshots,
		enricher:    enricher,
		broadcaster: broadcaster,
		log:         logger.Ensure(log),
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/news", s.handleNews)
		r.Get("/sources/health", s.handleSourceHealth)
	})
	return r
}

// newsResponse is the wire shape of a news batch. Stale and SavedAt are only
// set when the batch came from the snapshot store.
type newsResponse struct {
	Articles    []domain.Article `json:"articles"`
	Sources     []string         `json:"sources"`
	Errors      []string         `json:"errors,omitempty"`
	FetchTimeMs int64            `json:"fetchTimeMs"`
	Stale       bool             `json:"stale,omitempty"`
	SavedAt     *time.Time       `json:"savedAt,omitempty"`
}

// CacheKey builds the cache and snapshot key for a category/query pair.
func CacheKey(category domain.Category, query string) string {
	cat := string(category)
	if cat == "" {
		cat = "all"
	}
	q := query
	if q == "" {
		q = "default"
	}
	return fmt.Sprintf("news:%s:%s", cat, q)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	refresh := r.URL.Query().Get("refresh") == "true"

	category := domain.Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", category))
		return
	}

	key := CacheKey(category, query)

	if !refresh {
		if v, age, ok := s.cache.GetWithAge(key); ok {
			// A foreign value under a news key falls through to a fresh fetch.
			if resp, ok := v.(newsResponse); ok {
				w.Header().Set("X-Cache", "HIT")
				w.Header().Set("X-Cache-Age", strconv.Itoa(int(age.Seconds())))
				s.setBatchHeaders(w, resp)
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}
	}

	res := s.agg.Aggregate(r.Context(), aggregate.Options{
		Category:    category,
		Query:       query,
		MaxArticles: s.cfg.MaxArticles,
	})

	if len(res.Articles) == 0 && len(res.Errors) > 0 {
		if resp, ok := s.staleBatch(key, res); ok {
			w.Header().Set("X-Cache", "STALE")
			s.setBatchHeaders(w, resp)
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	if s.enricher != nil && len(res.Articles) > 0 {
		res.Articles = s.enricher.Enrich(r.Context(), res.Articles, s.cfg.EnrichTopN)
	}

	resp := newsResponse{
		Articles:    res.Articles,
		Sources:     res.Sources,
		Errors:      res.Errors,
		FetchTimeMs: res.FetchTimeMs,
	}

	if len(res.Articles) > 0 {
		s.cache.Set(key, resp, s.cfg.CacheTTL)
		s.persistBatch(key, resp)
		s.announce(key, category, query, resp)
	}

	w.Header().Set("X-Cache", "MISS")
	s.setBatchHeaders(w, resp)
	writeJSON(w, http.StatusOK, resp)
}

// staleBatch loads the last-known-good batch for key after a total upstream
// failure. The live errors ride along so callers can see why it is stale.
func (s *Server) staleBatch(key string, res aggregate.Result) (newsResponse, bool) {
	if s.snapshots == nil {
		return newsResponse{}, false
	}

	batch, err := s.snapshots.Load(key)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			s.log.ErrorObj("snapshot load failed", "snapshot_load_error", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
		return newsResponse{}, false
	}

	s.log.WarnObj("all sources failed, serving stale batch", "news_stale_fallback", map[string]any{
		"key":      key,
		"saved_at": batch.SavedAt,
	})
	savedAt := batch.SavedAt
	return newsResponse{
		Articles:    batch.Articles,
		Sources:     batch.Sources,
		Errors:      res.Errors,
		FetchTimeMs: res.FetchTimeMs,
		Stale:       true,
		SavedAt:     &savedAt,
	}, true
}

func (s *Server) persistBatch(key string, resp newsResponse) {
	if s.snapshots == nil {
		return
	}
	err := s.snapshots.Save(key, snapshot.Batch{
		Articles: resp.Articles,
		Sources:  resp.Sources,
	})
	if err != nil {
		s.log.ErrorObj("snapshot save failed", "snapshot_save_error", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// announce notifies configured sinks about the fresh batch without holding
// up the response.
func (s *Server) announce(key string, category domain.Category, query string, resp newsResponse) {
	if s.broadcaster == nil {
		return
	}
	evt := publish.Event{
		Key:          key,
		Category:     string(category),
		Query:        query,
		ArticleCount: len(resp.Articles),
		Sources:      resp.Sources,
		ErrorCount:   len(resp.Errors),
		FetchTimeMs:  resp.FetchTimeMs,
		Timestamp:    time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.broadcaster.Broadcast(ctx, evt)
	}()
}

func (s *Server) handleSourceHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.agg.Health())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) setBatchHeaders(w http.ResponseWriter, resp newsResponse) {
	w.Header().Set("X-Sources", strconv.Itoa(len(resp.Sources)))
	w.Header().Set("X-Fetch-Time", strconv.FormatInt(resp.FetchTimeMs, 10))
}

// requestLogger records one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.InfoObj("request handled", "http_request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"cache":       ww.Header().Get("X-Cache"),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
