package storage

import (
	"context"
	"fmt"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

// Migrate copies every document of src's collection into dst, identities included.
// This works for:
// - Embedded -> MongoDB (the "upgrade")
// - MongoDB -> Embedded (the "backup/offline" copy)
//
// Documents are read batch at a time; src must not be written to while it runs.
func Migrate(ctx context.Context, src, dst store.Store, batch int64, log *logger.Logger) (int64, error) {
	if batch <= 0 {
		return 0, fmt.Errorf("batch size must be positive, got %d", batch)
	}
	log = log.With("component", "storage.migrate", "from", src.Collection(), "to", dst.Collection())

	var copied int64
	for {
		docs, err := src.Find(ctx, store.Filter{}, copied, batch)
		if err != nil {
			return copied, fmt.Errorf("read batch at %d: %w", copied, err)
		}
		if len(docs) == 0 {
			break
		}
		if _, err := dst.InsertMany(ctx, docs); err != nil {
			return copied, fmt.Errorf("write batch at %d: %w", copied, err)
		}
		copied += int64(len(docs))
		log.Debug("batch copied", "copied", copied)

		if int64(len(docs)) < batch {
			break
		}
	}
	log.Info("migration finished", "documents", copied)
	return copied, nil
}
