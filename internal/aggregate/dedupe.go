package aggregate

import (
	"strings"
	"time"
	"unicode"

	"github.com/situation-hq/situation-monitor/internal/domain"
)

// DedupeConfig holds the near-duplicate matching knobs. The threshold and
// completeness weights are tunables, not proven-optimal constants.
type DedupeConfig struct {
	SimilarityThreshold float64
	DescriptionWeight   float64
	ImageWeight         float64
	AuthorWeight        float64
	RecencyCapHours     float64
}

// DefaultDedupeConfig returns the production defaults.
func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{
		SimilarityThreshold: 0.75,
		DescriptionWeight:   2,
		ImageWeight:         1,
		AuthorWeight:        1,
		RecencyCapHours:     5,
	}
}

// dedupeEntry keeps the representative article together with the normalized
// title it is keyed under.
type dedupeEntry struct {
	key     string
	article domain.Article
}

// Dedupe collapses near-duplicate articles across sources. Titles are
// normalized and compared by word-set overlap; on a match the more complete
// article wins, with the incumbent kept on ties. Insertion order of the
// surviving entries is preserved, so the result is deterministic for a
// fixed input order.
func Dedupe(articles []domain.Article, cfg DedupeConfig, now time.Time) []domain.Article {
	var entries []dedupeEntry
	index := make(map[string]int, len(articles))

	for _, article := range articles {
		key := normalizeTitle(article.Title)

		// Exact normalized match: first seen wins outright.
		if _, exists := index[key]; exists {
			continue
		}

		matched := false
		for i := range entries {
			if similarity(key, entries[i].key) > cfg.SimilarityThreshold {
				if completeness(article, cfg, now) > completeness(entries[i].article, cfg, now) {
					delete(index, entries[i].key)
					entries[i] = dedupeEntry{key: key, article: article}
					index[key] = i
				}
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		index[key] = len(entries)
		entries = append(entries, dedupeEntry{key: key, article: article})
	}

	out := make([]domain.Article, len(entries))
	for i, e := range entries {
		out[i] = e.article
	}
	return out
}

// normalizeTitle lowercases, strips everything but word characters and
// spaces, and collapses whitespace.
func normalizeTitle(title string) string {
	lowered := strings.ToLower(title)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, lowered)
	return strings.Join(strings.Fields(cleaned), " ")
}

// similarity is the Jaccard index over the words of both titles, ignoring
// words of one or two characters.
func similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

// completeness scores how much an article brings beyond its headline, plus a
// small bonus for recency.
func completeness(a domain.Article, cfg DedupeConfig, now time.Time) float64 {
	score := 0.0
	if a.Description != "" {
		score += cfg.DescriptionWeight
	}
	if a.ImageURL != "" {
		score += cfg.ImageWeight
	}
	if a.Author != "" {
		score += cfg.AuthorWeight
	}

	hours := now.Sub(a.PublishedAt).Hours()
	if bonus := cfg.RecencyCapHours - hours; bonus > 0 {
		score += bonus
	}
	return score
}
