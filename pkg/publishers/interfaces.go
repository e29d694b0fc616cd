package publishers

import "context"

// Publisher sends events to a downstream sink (HTTP, SQS, SNS, Pub/Sub).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// closer is implemented by publishers holding client resources.
type closer interface {
	Close() error
}

// router is implemented by publishers that only take events of some watches.
type router interface {
	Accepts(watchID string) bool
}
