package publishers

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type pubsubPublisher struct {
	id      string
	ordered bool
	client  *pubsub.Client
	topic   *pubsub.Topic
	log     Logger
}

func newPubSubPublisher(ctx context.Context, cfg Config, log Logger) (Publisher, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("publisher %q missing pubsub configuration", cfg.ID)
	}

	var opts []option.ClientOption
	if cfg.PubSub.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.PubSub.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.PubSub.Topic)
	topic.EnableMessageOrdering = cfg.PubSub.Ordered

	return &pubsubPublisher{
		id:      cfg.ID,
		ordered: cfg.PubSub.Ordered,
		client:  client,
		topic:   topic,
		log:     ensureLogger(log),
	}, nil
}

func (p *pubsubPublisher) ID() string   { return p.id }
func (p *pubsubPublisher) Type() string { return TypePubSub }

// Publish waits for the server acknowledgement. A failed ordered publish
// pauses its ordering key, so the key is resumed before returning.
func (p *pubsubPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := evt.encode()
	if err != nil {
		return err
	}

	msg := &pubsub.Message{
		Data:       payload,
		Attributes: evt.attributes(),
	}
	if p.ordered {
		msg.OrderingKey = evt.groupKey()
	}

	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if p.ordered {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		p.log.ErrorObj("pubsub publisher send failed", "publisher_pubsub_error", map[string]any{
			"publisher_id": p.id,
			"event_id":     evt.ID,
			"error":        err.Error(),
		})
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	p.log.DebugObj("pubsub publisher delivered event", "publisher_pubsub_delivery", map[string]any{
		"publisher_id": p.id,
		"event_id":     evt.ID,
		"message_id":   id,
	})
	return nil
}

// Close flushes pending messages and releases the client.
func (p *pubsubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
