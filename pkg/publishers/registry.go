package publishers

import (
	"context"
	"fmt"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Builders maps publisher types to their constructors.
type Builders map[string]Builder

// DefaultBuilders returns the constructors for every supported sink.
func DefaultBuilders() Builders {
	return Builders{
		TypeHTTP:   newHTTPPublisher,
		TypeSQS:    newSQSPublisher,
		TypeSNS:    newSNSPublisher,
		TypePubSub: newPubSubPublisher,
	}
}

// Build instantiates a publisher per config. Configs with watch_ids are wrapped
// so the fan-out only hands them events from those watches. If any build fails
// the publishers built so far are closed.
func (b Builders) Build(ctx context.Context, cfgs []PublisherConfig, log Logger) ([]Publisher, error) {
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		build, ok := b[cfg.Type]
		if !ok {
			_ = NewFanout(pubs).Close()
			return nil, fmt.Errorf("no publisher registered for type %q (publisher %q)", cfg.Type, cfg.ID)
		}
		pub, err := build(ctx, cfg, log)
		if err != nil {
			_ = NewFanout(pubs).Close()
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		if len(cfg.WatchIDs) > 0 {
			pub = &routedPublisher{Publisher: pub, cfg: cfg}
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// routedPublisher limits a publisher to the watches named in its config.
type routedPublisher struct {
	Publisher
	cfg PublisherConfig
}

func (r *routedPublisher) Accepts(watchID string) bool { return r.cfg.Routes(watchID) }

func (r *routedPublisher) Close() error {
	if c, ok := r.Publisher.(closer); ok {
		return c.Close()
	}
	return nil
}
