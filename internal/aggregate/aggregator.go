package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/situation-hq/situation-monitor/internal/domain"
	"github.com/situation-hq/situation-monitor/internal/health"
	"github.com/situation-hq/situation-monitor/internal/logger"
	"github.com/situation-hq/situation-monitor/pkg/providers"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMaxArticles  = 50

	// deprioritizeAfter is the consecutive-error count past which an
	// adapter is pushed to the back of the processing order.
	deprioritizeAfter = 3
)

// Operation pairs a provider fetcher with its static priority; lower runs
// (and is processed) earlier.
type Operation struct {
	Priority int
	Fetcher  providers.Fetcher
}

// Options narrows one aggregation call.
type Options struct {
	Category    domain.Category
	Query       string
	MaxArticles int
}

// Result is the aggregator's total contract: it is always returned, even
// when every upstream source failed.
type Result struct {
	Articles    []domain.Article `json:"articles"`
	Sources     []string         `json:"sources"`
	Errors      []string         `json:"errors"`
	FetchTimeMs int64            `json:"fetchTimeMs"`
}

// Config tunes the aggregator.
type Config struct {
	FetchTimeout time.Duration
	Dedupe       DedupeConfig
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: defaultFetchTimeout,
		Dedupe:       DefaultDedupeConfig(),
	}
}

// Aggregator fans out to all configured provider adapters, tolerates partial
// failure, and merges the results into one deduplicated, recency-ordered
// batch.
type Aggregator struct {
	cfg     Config
	ops     []Operation
	tracker *health.Tracker
	log     logger.Logger
}

// New builds an Aggregator over the given operations. The health tracker is
// required; it biases ordering across calls.
func New(cfg Config, ops []Operation, tracker *health.Tracker, log logger.Logger) *Aggregator {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Dedupe.SimilarityThreshold <= 0 {
		cfg.Dedupe = DefaultDedupeConfig()
	}
	if tracker == nil {
		tracker = health.NewTracker()
	}
	return &Aggregator{
		cfg:     cfg,
		ops:     ops,
		tracker: tracker,
		log:     logger.Ensure(log),
	}
}

// outcome is the settled result of one provider operation.
type outcome struct {
	idx      int
	articles []domain.Article
	err      error
}

// Aggregate fetches from every adapter concurrently, each bounded by the
// configured timeout, and returns whatever the healthy subset produced. It
// never returns an error: per-source failures surface in Result.Errors.
func (a *Aggregator) Aggregate(ctx context.Context, opts Options) Result {
	start := time.Now()

	maxArticles := opts.MaxArticles
	if maxArticles <= 0 {
		maxArticles = defaultMaxArticles
	}

	ordered := a.orderOperations()
	fetchOpts := providers.FetchOptions{Category: opts.Category, Query: opts.Query}

	resCh := make(chan outcome, len(ordered))
	for i, op := range ordered {
		go a.runOperation(ctx, i, op, fetchOpts, resCh)
	}

	outcomes := make([]outcome, len(ordered))
	for range ordered {
		o := <-resCh
		outcomes[o.idx] = o
	}

	result := Result{
		Articles: []domain.Article{},
		Sources:  []string{},
		Errors:   []string{},
	}

	var combined []domain.Article
	for i, o := range outcomes {
		name := ordered[i].Fetcher.Name()
		id := ordered[i].Fetcher.ID()

		if o.err != nil {
			a.tracker.RecordOutcome(id, false)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", name, o.err))
			a.log.WarnObj("provider fetch failed", "aggregate_source_error", map[string]any{
				"provider_id": id,
				"error":       o.err.Error(),
			})
			continue
		}

		a.tracker.RecordOutcome(id, true)
		combined = append(combined, o.articles...)
		if len(o.articles) > 0 {
			result.Sources = append(result.Sources, name)
		}
	}

	deduplicated := Dedupe(combined, a.cfg.Dedupe, time.Now())

	sort.SliceStable(deduplicated, func(i, j int) bool {
		return deduplicated[i].PublishedAt.After(deduplicated[j].PublishedAt)
	})
	if len(deduplicated) > maxArticles {
		deduplicated = deduplicated[:maxArticles]
	}
	result.Articles = deduplicated
	result.FetchTimeMs = time.Since(start).Milliseconds()

	a.log.InfoObj("aggregation complete", "aggregate_done", map[string]any{
		"articles":      len(result.Articles),
		"sources":       len(result.Sources),
		"errors":        len(result.Errors),
		"fetch_time_ms": result.FetchTimeMs,
	})
	return result
}

// orderOperations sorts by static priority, then pushes adapters with three
// or more consecutive errors to the back. Concurrency makes this mostly a
// processing-order and logging concern, but it keeps runs deterministic.
func (a *Aggregator) orderOperations() []Operation {
	ordered := make([]Operation, len(a.ops))
	copy(ordered, a.ops)

	sort.SliceStable(ordered, func(i, j int) bool {
		di := a.tracker.ErrorCount(ordered[i].Fetcher.ID()) >= deprioritizeAfter
		dj := a.tracker.ErrorCount(ordered[j].Fetcher.ID()) >= deprioritizeAfter
		if di != dj {
			return dj
		}
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}

// runOperation races the fetch against the per-adapter timeout. A late
// result from a timed-out fetch lands in a buffered channel and is
// discarded, never awaited.
func (a *Aggregator) runOperation(ctx context.Context, idx int, op Operation, opts providers.FetchOptions, resCh chan<- outcome) {
	opCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		articles, err := op.Fetcher.Fetch(opCtx, opts)
		done <- outcome{idx: idx, articles: articles, err: err}
	}()

	select {
	case o := <-done:
		resCh <- o
	case <-opCtx.Done():
		err := opCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", a.cfg.FetchTimeout)
		}
		resCh <- outcome{idx: idx, err: err}
	}
}

// Health exposes the tracker's current view, for the debug endpoint.
func (a *Aggregator) Health() map[string]domain.SourceHealth {
	return a.tracker.Snapshot()
}
