package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/situation-hq/situation-monitor/internal/logger"
)

// webhookSink POSTs refresh events as JSON to a configured URL.
type webhookSink struct {
	id      string
	url     string
	headers map[string]string
	client  *resty.Client
	log     logger.Logger
}

func newWebhookSink(id string, cfg *WebhookConfig, log logger.Logger) Sink {
	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)

	return &webhookSink{
		id:      id,
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  client,
		log:     log,
	}
}

func (s *webhookSink) ID() string   { return s.id }
func (s *webhookSink) Type() string { return TypeWebhook }

// Publish delivers the event. Any non-2xx response is treated as a failure.
func (s *webhookSink) Publish(ctx context.Context, evt Event) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(s.headers).
		SetBody(evt).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
