package app

import (
	"context"

	"github.com/samvad-hq/crm-bff/pkg/publishers"
)

// EventPublisher publishes dashboard snapshots downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
	Size() int
	Close() error
}
