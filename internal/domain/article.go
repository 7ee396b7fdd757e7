package domain

import "time"

// Category classifies an article into one of the dashboard's news buckets.
type Category string

const (
	CategoryGeopolitics Category = "geopolitics"
	CategoryWar         Category = "war"
	CategoryTechnology  Category = "technology"
	CategoryAI          Category = "ai"
	CategoryEconomy     Category = "economy"
	CategoryClimate     Category = "climate"
	CategoryHealth      Category = "health"
)

// Categories returns all valid categories in canonical order.
func Categories() []Category {
	return []Category{
		CategoryGeopolitics,
		CategoryWar,
		CategoryTechnology,
		CategoryAI,
		CategoryEconomy,
		CategoryClimate,
		CategoryHealth,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Article is the canonical unit flowing through the aggregation pipeline.
// IDs are scoped to a single fetch; two providers reporting the same story
// carry distinct ids until deduplication merges them.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source"`
	SourceID    string    `json:"sourceId"`
	Author      string    `json:"author,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Category    Category  `json:"category"`
}

// SourceHealth is the rolling reliability record kept per adapter.
type SourceHealth struct {
	LastSuccess time.Time `json:"lastSuccess"`
	ErrorCount  int       `json:"errorCount"`
	LastUsed    time.Time `json:"lastUsed"`
}
