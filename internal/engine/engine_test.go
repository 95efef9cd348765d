package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/internal/storage/storetest"
	"github.com/celerix-dev/celerix-messages/pkg/record"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

func TestMemStore_Suite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return NewMemStore("test", "messages", nil, nil, logger.Nop())
	})
}

func TestMemStore_PersistedSuite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		p, err := NewPersistence(t.TempDir(), logger.Nop())
		require.NoError(t, err)
		return NewMemStore("test", "messages", nil, p, logger.Nop())
	})
}

func TestPersistence(t *testing.T) {
	req := require.New(t)
	tmpDir := t.TempDir()

	p, err := NewPersistence(tmpDir, logger.Nop())
	req.NoError(err)

	id := primitive.NewObjectID()
	docs := []record.RawRecord{{
		{Key: record.IdentityKey, Value: id},
		{Key: "Date", Value: "2023-01-01"},
		{Key: "message", Value: "hello"},
		{Key: "type", Value: "INFO"},
	}}
	req.NoError(p.SaveCollection("POC-OMI", docs))

	_, err = os.Stat(filepath.Join(tmpDir, "POC-OMI.json"))
	req.NoError(err, "collection file was not created")

	allData, err := p.LoadAll()
	req.NoError(err)
	req.Len(allData, 1)
	req.Equal(docs, allData["POC-OMI"])
}

func TestPersistence_SkipsCorruptFiles(t *testing.T) {
	req := require.New(t)
	tmpDir := t.TempDir()
	req.NoError(os.WriteFile(filepath.Join(tmpDir, "broken.json"), []byte("{not json"), 0644))

	p, err := NewPersistence(tmpDir, logger.Nop())
	req.NoError(err)

	allData, err := p.LoadAll()
	req.NoError(err)
	req.Empty(allData)
}

func TestMemStore_Persistence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tmpDir := t.TempDir()

	p, err := NewPersistence(tmpDir, logger.Nop())
	req.NoError(err)
	ms := NewMemStore("test", "messages", nil, p, logger.Nop())

	id, err := ms.Insert(ctx, record.RawRecord{{Key: "date", Value: "d"}, {Key: "message", Value: "m"}, {Key: "type", Value: "t"}})
	req.NoError(err)
	_, err = ms.UpdateFields(ctx, id, map[string]any{"type": "WARN"})
	req.NoError(err)
	ms.Wait() // Wait for background persistence

	allData, err := p.LoadAll()
	req.NoError(err)
	ms2 := NewMemStore("test", "messages", allData, p, logger.Nop())

	got, err := ms2.Get(ctx, id)
	req.NoError(err)
	v, _ := got.Get("type")
	req.Equal("WARN", v)

	names, err := ms2.CollectionNames(ctx)
	req.NoError(err)
	req.Equal([]string{"messages"}, names)
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ms := NewMemStore("test", "messages", nil, nil, logger.Nop())

	id, err := ms.Insert(ctx, record.RawRecord{{Key: "date", Value: "d"}})
	req.NoError(err)

	got, err := ms.Get(ctx, id)
	req.NoError(err)
	got.Set("date", "changed")

	again, err := ms.Get(ctx, id)
	req.NoError(err)
	v, _ := again.Get("date")
	req.Equal("d", v)
}

func TestMemStore_DuplicateID(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ms := NewMemStore("test", "messages", nil, nil, logger.Nop())

	id := primitive.NewObjectID()
	_, err := ms.Insert(ctx, record.RawRecord{{Key: record.IdentityKey, Value: id}})
	req.NoError(err)
	_, err = ms.Insert(ctx, record.RawRecord{{Key: record.IdentityKey, Value: id}})
	req.ErrorIs(err, ErrDuplicateID)
}

func TestMemStore_Concurrent(t *testing.T) {
	ms := NewMemStore("test", "messages", nil, nil, logger.Nop())
	ctx := context.Background()
	const (
		numGoroutines = 10
		numOps        = 100
	)
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*numOps)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				body := fmt.Sprintf("m-%d-%d", g, j)
				id, err := ms.Insert(ctx, record.RawRecord{{Key: "message", Value: body}})
				if err != nil {
					errs <- err
					continue
				}
				got, err := ms.Get(ctx, id)
				if err != nil {
					errs <- err
					continue
				}
				if v, _ := got.Get("message"); v != body {
					errs <- fmt.Errorf("expected %s, got %v", body, v)
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	n, err := ms.Count(ctx, store.Filter{})
	require.NoError(t, err)
	require.EqualValues(t, numGoroutines*numOps, n)
}

func TestMemStore_PersistsNonObjectIDIdentity(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	p, err := NewPersistence(t.TempDir(), logger.Nop())
	req.NoError(err)
	ms := NewMemStore("test", "messages", nil, p, logger.Nop())

	_, err = ms.InsertMany(ctx, []record.RawRecord{
		{{Key: record.IdentityKey, Value: "legacy-1"}, {Key: "message", Value: "a"}},
		{{Key: record.IdentityKey, Value: int32(42)}, {Key: "message", Value: "b"}},
	})
	req.NoError(err)
	ms.Wait()

	allData, err := p.LoadAll()
	req.NoError(err)
	reloaded := NewMemStore("test", "messages", allData, p, logger.Nop())

	for _, id := range []any{"legacy-1", int32(42)} {
		got, err := reloaded.Get(ctx, id)
		req.NoError(err)
		gotID, _ := got.ID()
		req.Equal(id, gotID)
	}
}
