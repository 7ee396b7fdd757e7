package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/situation-hq/situation-monitor/internal/logger"
)

// pubsubSink publishes refresh events to a Google Cloud Pub/Sub topic.
type pubsubSink struct {
	id    string
	topic *pubsub.Topic
	log   logger.Logger
}

func newPubSubSink(ctx context.Context, id string, cfg *PubSubConfig, log logger.Logger) (Sink, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &pubsubSink{
		id:    id,
		topic: client.Topic(cfg.Topic),
		log:   log,
	}, nil
}

func (s *pubsubSink) ID() string   { return s.id }
func (s *pubsubSink) Type() string { return TypePubSub }

func (s *pubsubSink) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res := s.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"key": evt.Key},
	})
	msgID, err := res.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish to pubsub: %w", err)
	}

	s.log.DebugObj("pubsub sink delivered event", "sink_pubsub_delivery", map[string]any{
		"message_id": msgID,
	})
	return nil
}
