package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/situation-hq/situation-monitor/internal/logger"
)

// Supported sink types.
const (
	TypeWebhook = "webhook"
	TypeSNS     = "sns"
	TypeSQS     = "sqs"
	TypePubSub  = "pubsub"
)

// Event is the refresh summary delivered to downstream sinks after an
// aggregation batch completes.
type Event struct {
	Key          string    `json:"key"`
	Category     string    `json:"category,omitempty"`
	Query        string    `json:"query,omitempty"`
	ArticleCount int       `json:"articleCount"`
	Sources      []string  `json:"sources"`
	ErrorCount   int       `json:"errorCount"`
	FetchTimeMs  int64     `json:"fetchTimeMs"`
	Timestamp    time.Time `json:"timestamp"`
}

// Sink delivers refresh events to one downstream destination.
type Sink interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// SinkConfig is one sink entry in the sinks file.
type SinkConfig struct {
	ID      string         `yaml:"id"`
	Type    string         `yaml:"type"`
	Enabled *bool          `yaml:"enabled"`
	Webhook *WebhookConfig `yaml:"webhook"`
	SNS     *SNSConfig     `yaml:"sns"`
	SQS     *SQSConfig     `yaml:"sqs"`
	PubSub  *PubSubConfig  `yaml:"pubsub"`
}

// WebhookConfig holds generic HTTP sink settings.
type WebhookConfig struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
}

// SNSConfig holds AWS SNS topic settings.
type SNSConfig struct {
	TopicARN        string `yaml:"topic_arn"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// SQSConfig holds AWS SQS queue settings.
type SQSConfig struct {
	QueueURL        string `yaml:"queue_url"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// PubSubConfig holds Google Cloud Pub/Sub topic settings.
type PubSubConfig struct {
	ProjectID       string `yaml:"project_id"`
	Topic           string `yaml:"topic"`
	CredentialsFile string `yaml:"credentials_file"`
}

type sinksFile struct {
	Sinks []SinkConfig `yaml:"sinks"`
}

// LoadConfigs reads sink definitions from a YAML file. Environment variable
// references in the file are expanded before decoding, so credentials stay
// out of the file itself.
func LoadConfigs(path string) ([]SinkConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sinks file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sinks file: %w", err)
	}

	var file sinksFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("decode sinks file: %w", err)
	}
	if len(file.Sinks) == 0 {
		return nil, errors.New("sinks file contains no sink entries")
	}

	seen := make(map[string]struct{}, len(file.Sinks))
	out := make([]SinkConfig, 0, len(file.Sinks))
	for i, cfg := range file.Sinks {
		cfg = sanitizeSinkConfig(cfg)
		if err := validateSinkConfig(cfg); err != nil {
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate sink id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
		out = append(out, cfg)
	}
	return out, nil
}

func sanitizeSinkConfig(cfg SinkConfig) SinkConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.Webhook != nil {
		w := *cfg.Webhook
		w.URL = strings.TrimSpace(w.URL)
		w.Headers = trimHeaders(w.Headers)
		if w.TimeoutSeconds <= 0 {
			w.TimeoutSeconds = 5
		}
		cfg.Webhook = &w
	}
	if cfg.SNS != nil {
		s := *cfg.SNS
		s.TopicARN = strings.TrimSpace(s.TopicARN)
		s.Region = strings.TrimSpace(s.Region)
		s.AccessKeyID = strings.TrimSpace(s.AccessKeyID)
		s.SecretAccessKey = strings.TrimSpace(s.SecretAccessKey)
		cfg.SNS = &s
	}
	if cfg.SQS != nil {
		q := *cfg.SQS
		q.QueueURL = strings.TrimSpace(q.QueueURL)
		q.Region = strings.TrimSpace(q.Region)
		q.AccessKeyID = strings.TrimSpace(q.AccessKeyID)
		q.SecretAccessKey = strings.TrimSpace(q.SecretAccessKey)
		cfg.SQS = &q
	}
	if cfg.PubSub != nil {
		p := *cfg.PubSub
		p.ProjectID = strings.TrimSpace(p.ProjectID)
		p.Topic = strings.TrimSpace(p.Topic)
		p.CredentialsFile = strings.TrimSpace(p.CredentialsFile)
		cfg.PubSub = &p
	}
	return cfg
}

func trimHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateSinkConfig(cfg SinkConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case TypeWebhook:
		if cfg.Webhook == nil || cfg.Webhook.URL == "" {
			return fmt.Errorf("webhook.url is required for sink %q", cfg.ID)
		}
	case TypeSNS:
		if cfg.SNS == nil {
			return fmt.Errorf("sns config required for sink %q", cfg.ID)
		}
		if cfg.SNS.TopicARN == "" || cfg.SNS.Region == "" {
			return fmt.Errorf("sns.topic_arn and sns.region are required for sink %q", cfg.ID)
		}
		if cfg.SNS.AccessKeyID == "" || cfg.SNS.SecretAccessKey == "" {
			return fmt.Errorf("sns credentials are required for sink %q", cfg.ID)
		}
	case TypeSQS:
		if cfg.SQS == nil {
			return fmt.Errorf("sqs config required for sink %q", cfg.ID)
		}
		if cfg.SQS.QueueURL == "" || cfg.SQS.Region == "" {
			return fmt.Errorf("sqs.queue_url and sqs.region are required for sink %q", cfg.ID)
		}
		if cfg.SQS.AccessKeyID == "" || cfg.SQS.SecretAccessKey == "" {
			return fmt.Errorf("sqs credentials are required for sink %q", cfg.ID)
		}
	case TypePubSub:
		if cfg.PubSub == nil || cfg.PubSub.ProjectID == "" || cfg.PubSub.Topic == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic are required for sink %q", cfg.ID)
		}
	case "":
		return fmt.Errorf("type is required for sink %q", cfg.ID)
	default:
		return fmt.Errorf("type %q not supported for sink %q", cfg.Type, cfg.ID)
	}
	return nil
}

func (cfg SinkConfig) enabled() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// BuildSinks instantiates a sink for every enabled config entry.
func BuildSinks(ctx context.Context, cfgs []SinkConfig, log logger.Logger) ([]Sink, error) {
	log = logger.Ensure(log)

	var sinks []Sink
	for _, cfg := range cfgs {
		if !cfg.enabled() {
			continue
		}

		var (
			sink Sink
			err  error
		)
		switch cfg.Type {
		case TypeWebhook:
			sink = newWebhookSink(cfg.ID, cfg.Webhook, log)
		case TypeSNS:
			sink, err = newSNSSink(ctx, cfg.ID, cfg.SNS, log)
		case TypeSQS:
			sink, err = newSQSSink(ctx, cfg.ID, cfg.SQS, log)
		case TypePubSub:
			sink, err = newPubSubSink(ctx, cfg.ID, cfg.PubSub, log)
		default:
			err = fmt.Errorf("type %q not supported", cfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("build sink %q: %w", cfg.ID, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

// Broadcaster fans refresh events out to every configured sink. Delivery
// failures are logged and do not affect the refresh itself.
type Broadcaster struct {
	sinks []Sink
	log   logger.Logger
}

// NewBroadcaster wraps the given sinks. A nil or empty sink list yields a
// broadcaster whose Broadcast is a no-op.
func NewBroadcaster(sinks []Sink, log logger.Logger) *Broadcaster {
	return &Broadcaster{sinks: sinks, log: logger.Ensure(log)}
}

// Broadcast delivers evt to all sinks concurrently and waits for completion.
func (b *Broadcaster) Broadcast(ctx context.Context, evt Event) {
	if b == nil || len(b.sinks) == 0 {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	var wg sync.WaitGroup
	for _, sink := range b.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			if err := s.Publish(ctx, evt); err != nil {
				b.log.WarnObj("sink delivery failed", "sink_error", map[string]any{
					"sink":  s.ID(),
					"type":  s.Type(),
					"error": err.Error(),
				})
				return
			}
			b.log.DebugObj("sink delivered refresh event", "sink_delivery", map[string]any{
				"sink": s.ID(),
				"key":  evt.Key,
			})
		}(sink)
	}
	wg.Wait()
}
