// Package storage selects and wires the configured store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/celerix-dev/celerix-messages/internal/badgerstore"
	"github.com/celerix-dev/celerix-messages/internal/config"
	"github.com/celerix-dev/celerix-messages/internal/engine"
	"github.com/celerix-dev/celerix-messages/internal/mongostore"
	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

// Open initializes the store named by cfg.Backend.
// The caller does not care whether the documents live in MongoDB, Badger or process memory.
func Open(ctx context.Context, cfg config.Store, log *logger.Logger) (store.Store, error) {
	log = log.With("backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.Database, cfg.Collection, cfg.Timeout, log)
		if err != nil {
			return nil, err
		}
		log.Info("connected to mongodb", "database", cfg.Database, "collection", cfg.Collection)
		return s, nil

	case config.BackendBadger:
		s, err := badgerstore.Open(cfg.BadgerPath, cfg.Database, cfg.Collection, log)
		if err != nil {
			return nil, err
		}
		log.Info("opened badger store", "path", cfg.BadgerPath, "collection", cfg.Collection)
		return s, nil

	case config.BackendMemory:
		p, err := engine.NewPersistence(cfg.DataDir, log)
		if err != nil {
			return nil, fmt.Errorf("init persistence: %w", err)
		}
		allData, err := p.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("load data dir: %w", err)
		}
		log.Info("loaded embedded store", "dir", cfg.DataDir, "collections", len(allData))
		return engine.NewMemStore(cfg.Database, cfg.Collection, allData, p, log), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
