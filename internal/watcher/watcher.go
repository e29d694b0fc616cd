package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/consul-client/internal/logger"
	"github.com/samvad-hq/consul-client/pkg/publishers"
	"github.com/samvad-hq/consul-client/pkg/transport"
	"github.com/samvad-hq/consul-client/pkg/watches"
)

// ErrNoIndex is returned when an endpoint answers without X-Consul-Index and
// therefore cannot be watched with blocking queries.
var ErrNoIndex = errors.New("response carries no consistency index")

const (
	defaultWait  = 5 * time.Minute
	defaultRetry = 5 * time.Second
)

// Options controls the agent address and blocking-query timing. Token is
// used for watches that do not carry their own ACL token.
type Options struct {
	Address string
	Token   string
	Wait    time.Duration
	Retry   time.Duration
}

// Service runs blocking-query loops for a set of watches.
type Service struct {
	transport *transport.Transport
	publisher EventPublisher
	store     IndexStore
	log       logger.Logger
	opts      Options
}

// NewService wires a watcher with the transport, publisher and index store.
func NewService(tr *transport.Transport, opts Options, pub EventPublisher, store IndexStore, log logger.Logger) *Service {
	if opts.Wait <= 0 {
		opts.Wait = defaultWait
	}
	if opts.Retry <= 0 {
		opts.Retry = defaultRetry
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		transport: tr,
		publisher: pub,
		store:     store,
		log:       log,
		opts:      opts,
	}
}

// Run starts one loop per watch and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context, ws []watches.Watch) error {
	if s == nil || s.transport == nil {
		return fmt.Errorf("watcher service is not initialized")
	}
	if len(ws) == 0 {
		return fmt.Errorf("no watches configured")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range ws {
		g.Go(func() error {
			s.runWatch(gctx, w)
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) runWatch(ctx context.Context, w watches.Watch) {
	last := s.loadIndex(w)
	s.log.InfoObj("watch loop starting", "watch_state", map[string]any{
		"watch_id":   w.ID,
		"path":       w.Path,
		"last_index": last,
	})

	for ctx.Err() == nil {
		next, serverIndex, err := s.poll(ctx, w, last)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.log.WarnObj("watch poll failed", "watch_error", map[string]any{
				"watch_id": w.ID,
				"error":    err.Error(),
			})
			if !sleep(ctx, s.opts.Retry) {
				break
			}
			continue
		}
		last = next
		// An agent reporting index 0 does not block, so pace the loop.
		if serverIndex == 0 && !sleep(ctx, s.opts.Retry) {
			break
		}
	}

	s.log.InfoObj("watch loop exiting", "watch_state", map[string]any{
		"watch_id":   w.ID,
		"last_index": last,
	})
}

// Poll issues one blocking query for w starting at lastIndex. When the index
// moved it publishes an event and checkpoints the new index. It returns the
// index to use for the next query.
func (s *Service) Poll(ctx context.Context, w watches.Watch, lastIndex uint64) (uint64, error) {
	next, _, err := s.poll(ctx, w, lastIndex)
	return next, err
}

// poll is Poll that also returns the index the agent reported.
func (s *Service) poll(ctx context.Context, w watches.Watch, lastIndex uint64) (uint64, uint64, error) {
	url, err := w.URL(s.opts.Address, lastIndex, w.Wait(s.opts.Wait))
	if err != nil {
		return lastIndex, 0, err
	}

	if w.Token == "" {
		w.Token = s.opts.Token
	}
	resp, err := transport.Get(ctx, s.transport, transport.NewRequest(url, w.RequestHeaders()), transport.JSONDecoder[json.RawMessage]())
	if err != nil {
		return lastIndex, 0, fmt.Errorf("watch %s: %w", w.ID, err)
	}
	if err := resp.Err(); err != nil {
		return lastIndex, 0, fmt.Errorf("watch %s: %w", w.ID, err)
	}

	index, ok := resp.Index()
	if !ok {
		return lastIndex, 0, fmt.Errorf("watch %s: %w", w.ID, ErrNoIndex)
	}

	next, changed := nextIndex(lastIndex, index)
	if !changed {
		return next, index, nil
	}

	payload, _ := resp.Content()
	evt := publishers.NewEvent(w.ID, w.Name, index, payload)
	meta := resp.Metadata()
	if leader, ok := meta.KnownLeader(); ok {
		evt.KnownLeader = &leader
	}
	if lc, ok := meta.LastContact(); ok {
		evt.LastContactMs = &lc
	}

	if err := s.publish(ctx, w, evt); err != nil {
		// Keep lastIndex so the next poll returns immediately and retries delivery.
		return lastIndex, index, err
	}
	if s.store != nil {
		if err := s.store.SaveIndex(w.ID, next); err != nil {
			s.log.WarnObj("watch checkpoint failed", "watch_error", map[string]any{
				"watch_id": w.ID,
				"error":    err.Error(),
			})
		}
	}
	return next, index, nil
}

func (s *Service) publish(ctx context.Context, w watches.Watch, evt publishers.Event) error {
	if s.publisher == nil {
		return nil
	}
	delivered, err := s.publisher.Publish(ctx, evt)
	if err != nil && delivered == 0 {
		return fmt.Errorf("publish watch %s index %d: %w", w.ID, evt.Index, err)
	}
	if err != nil {
		s.log.WarnObj("watch event partially delivered", "watch_publish", map[string]any{
			"watch_id":  w.ID,
			"index":     evt.Index,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
	s.log.InfoObj("watch fired", "watch_event", map[string]any{
		"watch_id":  w.ID,
		"index":     evt.Index,
		"delivered": delivered,
	})
	return nil
}

func (s *Service) loadIndex(w watches.Watch) uint64 {
	if s.store == nil {
		return 0
	}
	idx, found, err := s.store.LastIndex(w.ID)
	if err != nil {
		s.log.WarnObj("watch checkpoint unreadable; starting from scratch", "watch_error", map[string]any{
			"watch_id": w.ID,
			"error":    err.Error(),
		})
		return 0
	}
	if !found {
		return 0
	}
	return idx
}

// nextIndex applies the blocking-query index rules. An index of 0 is treated as
// 1 so the next query always blocks; an unchanged index is not a change; an
// index that went backwards resets the watch to zero.
func nextIndex(last, current uint64) (uint64, bool) {
	if current == 0 {
		current = 1
	}
	switch {
	case current == last:
		return last, false
	case current < last:
		return 0, true
	default:
		return current, true
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
