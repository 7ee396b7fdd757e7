package providers

import (
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/situation-hq/situation-monitor/internal/domain"
	"github.com/situation-hq/situation-monitor/pkg/httpclient"
)

// FetchOptions narrows a fetch to a category or free-text query. MaxResults
// is a per-provider hint; zero means the provider default.
type FetchOptions struct {
	Category   domain.Category
	Query      string
	MaxResults int
}

// Fetcher is a self-contained client for one upstream provider family.
// Implementations recover from upstream failures themselves: a returned
// error is a report for the orchestrator's error channel, never a panic,
// and a nil error with no articles is a valid quiet result (for example
// when a provider is not configured).
type Fetcher interface {
	ID() string
	Name() string
	Fetch(ctx context.Context, opts FetchOptions) ([]domain.Article, error)
}

// DefaultHTTPClient returns a tuned HTTP client for provider fetchers.
func DefaultHTTPClient() httpclient.Client {
	return httpclient.NewRestyClient(15 * time.Second)
}

const userAgent = "SituationMonitor/1.0"

func feedHeaders() map[string]string {
	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     "application/rss+xml, application/xml, text/xml",
	}
}

func apiHeaders() map[string]string {
	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     "application/json",
	}
}

// hashURL generates a SHA-1 hash of the given URL string.
func hashURL(u string) string {
	sum := sha1.Sum([]byte(u))
	return hex.EncodeToString(sum[:])
}

// articleID builds a fetch-scoped article id from the producing source slug
// and the article URL.
func articleID(sourceID, url string) string {
	return sourceID + "-" + hashURL(url)[:16]
}

// responseSnippet returns a truncated snippet of the response body for error
// messages.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

const dateJitterWindow = 45 * time.Minute

// jitteredNow substitutes a near-now timestamp for an unparseable upstream
// date. The random backdating spreads such articles out instead of stacking
// them all at "just now".
func jitteredNow() time.Time {
	return time.Now().Add(-rand.N(dateJitterWindow))
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}
