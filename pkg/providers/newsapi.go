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
	newsAPIProviderID   = "newsapi"
	newsAPIProviderName = "NewsAPI"
	newsAPIBaseURL      = "https://newsapi.org/v2"

	newsAPIDefaultPageSize = 30
)

// newsAPICategoryMap translates the dashboard categories into NewsAPI's own
// taxonomy (business, entertainment, general, health, science, sports,
// technology).
var newsAPICategoryMap = map[domain.Category]string{
	domain.CategoryGeopolitics: "general",
	domain.CategoryWar:         "general",
	domain.CategoryTechnology:  "technology",
	domain.CategoryAI:          "technology",
	domain.CategoryEconomy:     "business",
	domain.CategoryClimate:     "science",
	domain.CategoryHealth:      "health",
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// newsAPIFetcher is the keyed NewsAPI adapter. Without a key it degrades to
// an always-empty provider.
type newsAPIFetcher struct {
	client httpclient.Client
	apiKey string
	log    logger.Logger
}

// NewNewsAPIFetcher builds the NewsAPI adapter. An empty apiKey is allowed
// and silently disables the provider.
func NewNewsAPIFetcher(client httpclient.Client, apiKey string, log logger.Logger) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &newsAPIFetcher{
		client: client,
		apiKey: apiKey,
		log:    logger.Ensure(log),
	}
}

func (f *newsAPIFetcher) ID() string   { return newsAPIProviderID }
func (f *newsAPIFetcher) Name() string { return newsAPIProviderName }

func (f *newsAPIFetcher) Fetch(ctx context.Context, opts FetchOptions) ([]domain.Article, error) {
	if f.apiKey == "" {
		return nil, nil
	}

	pageSize := opts.MaxResults
	if pageSize <= 0 {
		pageSize = newsAPIDefaultPageSize
	}

	params := url.Values{}
	params.Set("apiKey", f.apiKey)
	params.Set("pageSize", strconv.Itoa(pageSize))

	// Keyword searches go to /everything; category browsing uses
	// /top-headlines, which requires a country.
	endpoint := "top-headlines"
	if opts.Query != "" {
		endpoint = "everything"
		params.Set("q", opts.Query)
		params.Set("sortBy", "publishedAt")
		params.Set("language", "en")
	} else {
		params.Set("country", "us")
		if opts.Category != "" {
			params.Set("category", mapCategory(newsAPICategoryMap, opts.Category, "general"))
		}
	}

	resp, err := f.client.Get(ctx, newsAPIBaseURL+"/"+endpoint+"?"+params.Encode(), apiHeaders())
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned status %d body: %s",
			resp.StatusCode(), responseSnippet(resp.Body()))
	}

	var data newsAPIResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("decode newsapi response: %w", err)
	}
	if data.Status != "ok" {
		return nil, fmt.Errorf("newsapi returned error status %q", data.Status)
	}

	return f.normalize(data, opts.Category), nil
}

func (f *newsAPIFetcher) normalize(data newsAPIResponse, pinned domain.Category) []domain.Article {
	articles := make([]domain.Article, 0, len(data.Articles))
	for _, a := range data.Articles {
		// NewsAPI tombstones withdrawn articles instead of omitting them.
		if a.Title == "" || a.Title == "[Removed]" || a.URL == "" {
			continue
		}

		sourceID := a.Source.ID
		if sourceID == "" {
			sourceID = newsAPIProviderID
		}

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
			Author:      a.Author,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			PublishedAt: publishedAt,
			Category:    category,
		})
	}
	return articles
}

func mapCategory(m map[domain.Category]string, c domain.Category, fallback string) string {
	if v, ok := m[c]; ok {
		return v
	}
	return fallback
}
