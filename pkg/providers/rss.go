package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/situation-hq/situation-monitor/internal/classify"
	"github.com/situation-hq/situation-monitor/internal/domain"
	"github.com/situation-hq/situation-monitor/internal/logger"
	"github.com/situation-hq/situation-monitor/pkg/feeds"
	"github.com/situation-hq/situation-monitor/pkg/httpclient"
)

const (
	rssProviderID   = "rss"
	rssProviderName = "RSS Feeds"

	// perFeedCap keeps a single prolific feed from dominating the batch.
	perFeedCap = 15
)

// feedCategoryFilter maps a requested article category to the feed-level
// category tags that can serve it. General feeds serve everything.
var feedCategoryFilter = map[domain.Category][]string{
	domain.CategoryGeopolitics: {"geopolitics", "general"},
	domain.CategoryWar:         {"war", "geopolitics", "general"},
	domain.CategoryTechnology:  {"technology", "general"},
	domain.CategoryAI:          {"technology", "general"},
	domain.CategoryEconomy:     {"economy", "general"},
	domain.CategoryClimate:     {"general"},
	domain.CategoryHealth:      {"general"},
}

// rssFetcher fans out across the configured syndicated feeds. Individual
// feed failures are logged and skipped; the adapter as a whole degrades to
// whatever the healthy feeds returned.
type rssFetcher struct {
	client  httpclient.Client
	sources []feeds.Source
	log     logger.Logger
}

// NewRSSFetcher builds the syndicated-feed adapter over the given feed table.
func NewRSSFetcher(client httpclient.Client, sources []feeds.Source, log logger.Logger) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &rssFetcher{
		client:  client,
		sources: sources,
		log:     logger.Ensure(log),
	}
}

func (f *rssFetcher) ID() string   { return rssProviderID }
func (f *rssFetcher) Name() string { return rssProviderName }

func (f *rssFetcher) Fetch(ctx context.Context, opts FetchOptions) ([]domain.Article, error) {
	sources := f.filterSources(opts.Category)
	if len(sources) == 0 {
		return nil, nil
	}

	results := make([][]domain.Article, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src feeds.Source) {
			defer wg.Done()
			articles, err := f.fetchFeed(ctx, src)
			if err != nil {
				f.log.WarnObj("feed fetch failed", "feed_fetch_error", map[string]any{
					"source_id": src.ID,
					"error":     err.Error(),
				})
				return
			}
			results[i] = articles
		}(i, src)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var all []domain.Article
	for _, batch := range results {
		all = append(all, batch...)
	}
	return all, nil
}

func (f *rssFetcher) filterSources(category domain.Category) []feeds.Source {
	if category == "" {
		return f.sources
	}

	allowed, ok := feedCategoryFilter[category]
	if !ok {
		allowed = []string{"general"}
	}

	var out []feeds.Source
	for _, src := range f.sources {
		for _, tag := range allowed {
			if src.Category == tag {
				out = append(out, src)
				break
			}
		}
	}
	return out
}

func (f *rssFetcher) fetchFeed(ctx context.Context, src feeds.Source) ([]domain.Article, error) {
	resp, err := f.client.Get(ctx, src.URL, feedHeaders())
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", src.ID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d body: %s",
			src.ID, resp.StatusCode(), responseSnippet(resp.Body()))
	}

	items := feeds.Parse(string(resp.Body()))
	if len(items) > perFeedCap {
		items = items[:perFeedCap]
	}

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		publishedAt, ok := feeds.ParseDate(item.PubDate)
		if !ok {
			publishedAt = jitteredNow()
		}

		author := item.Creator
		if author == "" {
			author = item.Author
		}

		articles = append(articles, domain.Article{
			ID:          articleID(src.ID, item.Link),
			Title:       item.Title,
			Description: item.Description,
			Source:      src.Name,
			SourceID:    src.ID,
			Author:      author,
			URL:         item.Link,
			PublishedAt: publishedAt,
			Category:    classify.Categorize(item.Title, item.Description),
		})
	}
	return articles, nil
}
