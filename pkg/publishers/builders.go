package publishers

import (
	"context"
	"fmt"
)

// Publisher delivers events to one downstream sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Builder creates a Publisher from a catalog entry.
type Builder func(ctx context.Context, cfg Config, log Logger) (Publisher, error)

// Builders maps publisher types to constructors.
type Builders map[string]Builder

// DefaultBuilders knows every sink type this package ships.
func DefaultBuilders() Builders {
	return Builders{
		TypeHTTP:   newHTTPPublisher,
		TypeSQS:    newSQSPublisher,
		TypeSNS:    newSNSPublisher,
		TypePubSub: newPubSubPublisher,
	}
}

// Build constructs the publisher for cfg. Entries restricted to a subset of
// dashboard sections get their events trimmed before delivery.
func (b Builders) Build(ctx context.Context, cfg Config, log Logger) (Publisher, error) {
	build, ok := b[cfg.Type]
	if !ok || build == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	pub, err := build(ctx, cfg, ensureLogger(log))
	if err != nil {
		return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
	}
	if len(cfg.Sections) > 0 {
		pub = &projected{Publisher: pub, sections: cfg.Sections}
	}
	return pub, nil
}

// BuildAll constructs every entry, closing the ones already built if a later
// entry fails.
func (b Builders) BuildAll(ctx context.Context, cfgs []Config, log Logger) ([]Publisher, error) {
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := b.Build(ctx, cfg, log)
		if err != nil {
			_ = closeAll(pubs)
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

type projected struct {
	Publisher
	sections []string
}

func (p *projected) Publish(ctx context.Context, evt Event) error {
	return p.Publisher.Publish(ctx, evt.project(p.sections))
}
