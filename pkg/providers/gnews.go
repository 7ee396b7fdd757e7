package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/situation-hq/situation-monitor/internal/classify"
	"github.com/situation-hq/situation-monitor/internal/domain"
	"github.com/situation-hq/situation-monitor/internal/logger"
	"github.com/situation-hq/situation-monitor/pkg/httpclient"
)

const (
	gnewsProviderID   = "gnews"
	gnewsProviderName = "GNews"
	gnewsBaseURL      = "https://gnews.io/api/v4"

	gnewsDefaultMaxResults = 20
)

// gnewsTopicMap translates dashboard categories into GNews topics
// (breaking-news, world, nation, business, technology, entertainment,
// sports, science, health).
var gnewsTopicMap = map[domain.Category]string{
	domain.CategoryGeopolitics: "world",
	domain.CategoryWar:         "world",
	domain.CategoryTechnology:  "technology",
	domain.CategoryAI:          "technology",
	domain.CategoryEconomy:     "business",
	domain.CategoryClimate:     "science",
	domain.CategoryHealth:      "health",
}

type gnewsResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"source"`
	} `json:"articles"`
}

// gnewsFetcher is the keyed GNews adapter. Without a key it degrades to an
// always-empty provider.
type gnewsFetcher struct {
	client httpclient.Client
	apiKey string
	log    logger.Logger
}

// NewGNewsFetcher builds the GNews adapter. An empty apiKey is allowed and
// silently disables the provider.
func NewGNewsFetcher(client httpclient.Client, apiKey string, log logger.Logger) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &gnewsFetcher{
		client: client,
		apiKey: apiKey,
		log:    logger.Ensure(log),
	}
}

func (f *gnewsFetcher) ID() string   { return gnewsProviderID }
func (f *gnewsFetcher) Name() string { return gnewsProviderName }

func (f *gnewsFetcher) Fetch(ctx context.Context, opts FetchOptions) ([]domain.Article, error) {
	if f.apiKey == "" {
		return nil, nil
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = gnewsDefaultMaxResults
	}

	params := url.Values{}
	params.Set("apikey", f.apiKey)
	params.Set("lang", "en")
	params.Set("max", strconv.Itoa(maxResults))

	endpoint := "top-headlines"
	switch {
	case opts.Query != "":
		endpoint = "search"
		params.Set("q", opts.Query)
	case opts.Category != "":
		params.Set("topic", mapCategory(gnewsTopicMap, opts.Category, "world"))
	default:
		params.Set("topic", "world")
	}

	resp, err := f.client.Get(ctx, gnewsBaseURL+"/"+endpoint+"?"+params.Encode(), apiHeaders())
	if err != nil {
		return nil, fmt.Errorf("gnews request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if resp.StatusCode() == http.StatusForbidden {
			return nil, fmt.Errorf("gnews rate limit reached (status %d)", resp.StatusCode())
		}
		return nil, fmt.Errorf("gnews returned status %d body: %s",
			resp.StatusCode(), responseSnippet(resp.Body()))
	}

	var data gnewsResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("decode gnews response: %w", err)
	}

	return f.normalize(data, opts.Category), nil
}

func (f *gnewsFetcher) normalize(data gnewsResponse, pinned domain.Category) []domain.Article {
	articles := make([]domain.Article, 0, len(data.Articles))
	for _, a := range data.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}

		sourceID := gnewsProviderID + "-" + slug(a.Source.Name)

		publishedAt, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			publishedAt = jitteredNow()
		}

		category := pinned
		if category == "" {
			category = classify.Categorize(a.Title, a.Description)
		}

		articles = append(articles, domain.Article{
			ID:          articleID(sourceID, a.URL),
			Title:       a.Title,
			Description: a.Description,
			Source:      a.Source.Name,
			SourceID:    sourceID,
			URL:         a.URL,
			ImageURL:    a.Image,
			PublishedAt: publishedAt,
			Category:    category,
		})
	}
	return articles
}
