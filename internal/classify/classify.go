package classify

import (
	"strings"

	"github.com/situation-hq/situation-monitor/internal/domain"
)

// rule pairs a category with the keywords that select it. Rules are scanned
// in order and the first keyword hit wins, so narrower categories must come
// before broad ones.
type rule struct {
	category domain.Category
	keywords []string
}

var rules = []rule{
	{domain.CategoryGeopolitics, []string{
		"diplomacy", "sanctions", "treaty", "alliance", "foreign policy",
		"un", "nato", "summit", "bilateral", "geopolitical",
	}},
	{domain.CategoryWar, []string{
		"war", "military", "conflict", "troops", "attack", "bombing",
		"casualties", "invasion", "defense", "combat", "missile", "strike",
	}},
	{domain.CategoryTechnology, []string{
		"tech", "cyber", "software", "hardware", "innovation", "startup",
		"silicon valley", "computing", "digital",
	}},
	{domain.CategoryAI, []string{
		"artificial intelligence", "ai", "machine learning", "chatgpt",
		"openai", "anthropic", "llm", "neural network", "deep learning", "agi",
	}},
	{domain.CategoryEconomy, []string{
		"economy", "market", "stock", "inflation", "recession", "gdp",
		"trade", "tariff", "central bank", "federal reserve", "interest rate",
	}},
	{domain.CategoryClimate, []string{
		"climate", "environment", "carbon", "emissions", "renewable",
		"fossil fuel", "global warming", "sustainability", "green energy",
	}},
	{domain.CategoryHealth, []string{
		"pandemic", "virus", "vaccine", "who", "outbreak", "disease",
		"health crisis", "epidemic", "quarantine",
	}},
}

// Categorize assigns a category by case-insensitive keyword matching against
// title and description. Defaults to geopolitics when nothing matches.
func Categorize(title, description string) domain.Category {
	text := strings.ToLower(title + " " + description)

	for _, r := range rules {
		for _, kw := range r.keywords {
			if matches(text, kw) {
				return r.category
			}
		}
	}
	return domain.CategoryGeopolitics
}

// matches does a substring check, except for very short keywords ("un",
// "ai", "war") which must appear as whole words to avoid hits inside
// unrelated text.
func matches(text, keyword string) bool {
	if len(keyword) > 3 {
		return strings.Contains(text, keyword)
	}

	for start := 0; ; {
		idx := strings.Index(text[start:], keyword)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(keyword)

		beforeOK := idx == 0 || !isWordChar(text[idx-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
