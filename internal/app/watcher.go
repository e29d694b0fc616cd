package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/consul-client/internal/config"
	"github.com/samvad-hq/consul-client/internal/logger"
	"github.com/samvad-hq/consul-client/internal/storage"
	"github.com/samvad-hq/consul-client/internal/watcher"
	"github.com/samvad-hq/consul-client/pkg/publishers"
	"github.com/samvad-hq/consul-client/pkg/transport"
	"github.com/samvad-hq/consul-client/pkg/watches"
)

// Watcher represents the consul-watch runtime. It owns the transport, the
// index store and the publisher fan-out, and drives the watcher service.
type Watcher struct {
	cfg      *config.Config
	watchReg *watches.Registry
	fanout   *publishers.Fanout
	service  *watcher.Service
	log      logger.Logger
	store    storage.Store
}

// NewWatcher builds a watcher runtime from config files.
func NewWatcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	watchReg, err := watches.LoadRegistry(cfg.WatchesFile)
	if err != nil {
		return nil, fmt.Errorf("load watches registry: %w", err)
	}
	enabledWatches := watchReg.Enabled()
	watchIDs := watches.IDs(enabledWatches)
	log.InfoObj("watches registry loaded", "watches_meta", map[string]any{
		"count": len(watchIDs),
		"ids":   watchIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	if err := publishers.CheckRoutes(enabledPublishers, watches.IDs(watchReg.All())); err != nil {
		return nil, fmt.Errorf("publisher routes: %w", err)
	}

	pubClients, err := publishers.DefaultBuilders().Build(ctx, enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":        pubCfg.ID,
			"type":      pubCfg.Type,
			"watch_ids": strings.Join(pubCfg.WatchIDs, ","),
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	tr, err := transport.New(cfg.HTTPOptions(), log)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init transport: %w", err)
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	pruned, err := store.Prune(watchIDs)
	if err != nil {
		log.WarnObj("storage prune failed", "error", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":   cfg.StorageType,
		"path":   cfg.BBoltPath,
		"pruned": pruned,
	})

	service := watcher.NewService(tr, watcher.Options{
		Address: cfg.ConsulAddress,
		Token:   cfg.ConsulToken,
		Wait:    cfg.WatchWait,
		Retry:   cfg.WatchRetry,
	}, fanout, store, log)

	return &Watcher{
		cfg:      cfg,
		watchReg: watchReg,
		fanout:   fanout,
		service:  service,
		log:      log,
		store:    store,
	}, nil
}

// Run starts every enabled watch until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.close()

	enabled := w.watchReg.Enabled()
	if len(enabled) == 0 {
		w.log.WarnObj("no watches enabled; watcher idle", "watches_file", w.cfg.WatchesFile)
		<-ctx.Done()
		return nil
	}

	start := time.Now()
	w.log.InfoObj("watcher starting", "watcher_state", map[string]any{
		"watches_count":    len(enabled),
		"publishers_count": w.fanout.Size(),
		"consul_address":   w.cfg.ConsulAddress,
		"wait":             w.cfg.WatchWait.String(),
	})

	if err := w.service.Run(ctx, enabled); err != nil {
		return err
	}

	w.log.InfoObj("watcher exiting", "watcher_state", map[string]any{
		"uptime": time.Since(start).String(),
		"reason": fmt.Sprint(ctx.Err()),
	})
	return nil
}

// close releases the storage backend and publisher clients, logging any errors.
func (w *Watcher) close() {
	if w.store != nil {
		if err := w.store.Close(); err != nil {
			w.log.ErrorObj("storage close failed", "error", err)
		}
	}
	if err := w.fanout.Close(); err != nil {
		w.log.ErrorObj("publisher close failed", "error", err)
	}
}
