package badgerstore

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/internal/storage/storetest"
	"github.com/celerix-dev/celerix-messages/pkg/record"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

func inMemory(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_Suite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(inMemory(t), "test", "messages", logger.Nop())
		require.NoError(t, err)
		return s
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, "test", "messages", logger.Nop())
	req.NoError(err)
	id, err := s.Insert(ctx, record.RawRecord{{Key: "Date", Value: "2023-01-01"}, {Key: "message", Value: "kept"}})
	req.NoError(err)
	req.NoError(s.Close(ctx))

	s, err = Open(dir, "test", "messages", logger.Nop())
	req.NoError(err)
	defer s.Close(ctx)

	got, err := s.Get(ctx, id)
	req.NoError(err)
	v, _ := got.Get("Date")
	req.Equal("2023-01-01", v)

	// New inserts continue after the persisted ones.
	_, err = s.Insert(ctx, record.RawRecord{{Key: "message", Value: "later"}})
	req.NoError(err)
	docs, err := s.Find(ctx, store.Filter{}, 0, 0)
	req.NoError(err)
	req.Len(docs, 2)
	first, _ := docs[0].Get("message")
	req.Equal("kept", first)
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := inMemory(t)

	a, err := New(db, "test", "alpha", logger.Nop())
	req.NoError(err)
	defer a.Close(ctx)
	b, err := New(db, "test", "beta", logger.Nop())
	req.NoError(err)
	defer b.Close(ctx)

	_, err = a.Insert(ctx, record.RawRecord{{Key: "type", Value: "INFO"}})
	req.NoError(err)
	_, err = b.Insert(ctx, record.RawRecord{{Key: "type", Value: "ERROR"}})
	req.NoError(err)

	n, err := a.DeleteAll(ctx)
	req.NoError(err)
	req.EqualValues(1, n)

	n, err = b.Count(ctx, store.Filter{})
	req.NoError(err)
	req.EqualValues(1, n)

	names, err := b.CollectionNames(ctx)
	req.NoError(err)
	req.Equal([]string{"alpha", "beta"}, names)
}

func TestStore_DuplicateID(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s, err := New(inMemory(t), "test", "messages", logger.Nop())
	req.NoError(err)
	defer s.Close(ctx)

	id, err := s.Insert(ctx, record.RawRecord{{Key: "type", Value: "INFO"}})
	req.NoError(err)
	_, err = s.Insert(ctx, record.RawRecord{{Key: "type", Value: "INFO"}}.WithID(id))
	req.ErrorIs(err, ErrDuplicateID)
}
