package watcher

import (
	"context"

	"github.com/samvad-hq/consul-client/pkg/publishers"
)

// EventPublisher publishes watch events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// IndexStore checkpoints the last index seen per watch.
type IndexStore interface {
	LastIndex(watchID string) (uint64, bool, error)
	SaveIndex(watchID string, index uint64) error
}
