package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/situation-hq/situation-monitor/internal/domain"
	"github.com/situation-hq/situation-monitor/internal/logger"
	"github.com/situation-hq/situation-monitor/pkg/httpclient"
	"github.com/situation-hq/situation-monitor/pkg/providers"
)

const (
	maxBodyBytes = 1 << 20 // 1 MiB
	maxWorkers   = 6
)

// Enricher backfills missing article metadata (image, description) by
// reading Open Graph tags from the article pages. Syndicated feeds rarely
// carry images, so the top of the batch gets a second pass here.
type Enricher struct {
	client httpclient.Client
	log    logger.Logger
}

// New creates an Enricher with the given HTTP client.
func New(client httpclient.Client, log logger.Logger) *Enricher {
	if client == nil {
		client = providers.DefaultHTTPClient()
	}
	return &Enricher{client: client, log: logger.Ensure(log)}
}

// Enrich scans the first topN articles and fills empty imageUrl/description
// fields from page metadata. Failures leave the article untouched; the input
// order is preserved.
func (e *Enricher) Enrich(ctx context.Context, articles []domain.Article, topN int) []domain.Article {
	out := make([]domain.Article, len(articles))
	copy(out, articles)

	var candidates []int
	for i := range out {
		if i >= topN {
			break
		}
		if out[i].ImageURL == "" || out[i].Description == "" {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return out
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup
	for range min(len(candidates), maxWorkers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				if ctx.Err() != nil {
					return
				}
				if enriched, err := e.fetchMeta(ctx, out[idx]); err != nil {
					e.log.DebugObj("article metadata fetch failed", "enrich_error", map[string]any{
						"url":   out[idx].URL,
						"error": err.Error(),
					})
				} else {
					out[idx] = enriched
				}
			}
		}()
	}

	for _, idx := range candidates {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	return out
}

func (e *Enricher) fetchMeta(ctx context.Context, art domain.Article) (domain.Article, error) {
	resp, err := e.client.Get(ctx, art.URL, map[string]string{"User-Agent": "SituationMonitor/1.0"})
	if err != nil {
		return art, fmt.Errorf("fetch page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return art, fmt.Errorf("page returned status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return art, fmt.Errorf("parse html: %w", err)
	}

	if art.ImageURL == "" {
		if img := metaContent(doc, `meta[property="og:image"]`); img != "" {
			art.ImageURL = absoluteURL(img, art.URL)
		}
	}
	if art.Description == "" {
		art.Description = firstNonEmpty(
			metaContent(doc, `meta[property="og:description"]`),
			metaContent(doc, `meta[name="description"]`),
		)
	}
	return art, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	if node := doc.Find(selector).First(); node.Length() > 0 {
		if val, ok := node.Attr("content"); ok {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// absoluteURL resolves a possibly relative image URL against the page URL.
func absoluteURL(raw, page string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.IsAbs() {
		return parsed.String()
	}
	base, err := url.Parse(page)
	if err != nil {
		return raw
	}
	return base.ResolveReference(parsed).String()
}
