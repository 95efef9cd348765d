// Package storetest holds the behavioural suite every store.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/celerix-dev/celerix-messages/pkg/record"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

func doc(date, msg, typ string) record.RawRecord {
	return record.RawRecord{
		{Key: "date", Value: date},
		{Key: "message", Value: msg},
		{Key: "type", Value: typ},
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("insert and get keeps field order", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t, newStore)

		raw := record.RawRecord{{Key: "Date", Value: "2023-01-01"}, {Key: "message", Value: "hi"}, {Key: "Type", Value: "INFO"}}
		id, err := s.Insert(ctx, raw)
		req.NoError(err)
		req.IsType(primitive.ObjectID{}, id)

		got, err := s.Get(ctx, id)
		req.NoError(err)
		gotID, ok := got.ID()
		req.True(ok)
		req.Equal(id, gotID)
		keys := lo.Map(got, func(f record.Field, _ int) string { return f.Key })
		req.Equal([]string{"_id", "Date", "message", "Type"}, keys)
	})

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := open(t, newStore)
		_, err := s.Get(context.Background(), primitive.NewObjectID())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("find filters skips and limits", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t, newStore)

		_, err := s.InsertMany(ctx, []record.RawRecord{
			doc("2023-01-01", "a", "INFO"),
			doc("2023-01-01", "b", "ERROR"),
			doc("2023-01-02", "c", "INFO"),
			doc("2023-01-03", "d", "INFO"),
		})
		req.NoError(err)

		all, err := s.Find(ctx, store.Filter{}, 0, 0)
		req.NoError(err)
		req.Len(all, 4)

		infos, err := s.Find(ctx, store.Filter{"type": "INFO"}, 0, 0)
		req.NoError(err)
		req.Equal([]string{"a", "c", "d"}, bodies(infos))

		page, err := s.Find(ctx, store.Filter{"type": "INFO"}, 1, 1)
		req.NoError(err)
		req.Equal([]string{"c"}, bodies(page))

		both, err := s.Find(ctx, store.Filter{"type": "INFO", "date": "2023-01-01"}, 0, 10)
		req.NoError(err)
		req.Equal([]string{"a"}, bodies(both))

		n, err := s.Count(ctx, store.Filter{"type": "INFO"})
		req.NoError(err)
		req.EqualValues(3, n)
	})

	t.Run("distinct", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t, newStore)

		_, err := s.InsertMany(ctx, []record.RawRecord{
			doc("2023-01-01", "a", "INFO"),
			doc("2023-01-02", "b", "INFO"),
			doc("2023-01-02", "c", "ERROR"),
		})
		req.NoError(err)

		types, err := s.Distinct(ctx, "type")
		req.NoError(err)
		req.ElementsMatch([]any{"INFO", "ERROR"}, types)

		dates, err := s.Distinct(ctx, "date")
		req.NoError(err)
		req.ElementsMatch([]any{"2023-01-01", "2023-01-02"}, dates)
	})

	t.Run("update fields reports modification", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t, newStore)

		id, err := s.Insert(ctx, doc("2023-01-01", "a", "INFO"))
		req.NoError(err)

		res, err := s.UpdateFields(ctx, id, map[string]any{"type": "WARN"})
		req.NoError(err)
		req.Equal(store.UpdateResult{Matched: 1, Modified: 1}, res)

		res, err = s.UpdateFields(ctx, id, map[string]any{"type": "WARN"})
		req.NoError(err)
		req.Equal(store.UpdateResult{Matched: 1, Modified: 0}, res)

		got, err := s.Get(ctx, id)
		req.NoError(err)
		v, _ := got.Get("type")
		req.Equal("WARN", v)
		v, _ = got.Get("date")
		req.Equal("2023-01-01", v)

		res, err = s.UpdateFields(ctx, primitive.NewObjectID(), map[string]any{"type": "WARN"})
		req.NoError(err)
		req.Zero(res.Matched)
	})

	t.Run("delete and delete all", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t, newStore)

		ids, err := s.InsertMany(ctx, []record.RawRecord{doc("d", "a", "t"), doc("d", "b", "t"), doc("d", "c", "t")})
		req.NoError(err)
		req.Len(ids, 3)

		req.NoError(s.Delete(ctx, ids[0]))
		req.True(errors.Is(s.Delete(ctx, ids[0]), store.ErrNotFound))

		n, err := s.DeleteAll(ctx)
		req.NoError(err)
		req.EqualValues(2, n)

		n, err = s.Count(ctx, store.Filter{})
		req.NoError(err)
		req.Zero(n)
	})

	t.Run("insert many keeps provided ids", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t, newStore)

		id := primitive.NewObjectID()
		ids, err := s.InsertMany(ctx, []record.RawRecord{doc("d", "a", "t").WithID(id)})
		req.NoError(err)
		req.Equal([]any{id}, ids)

		_, err = s.Get(ctx, id)
		req.NoError(err)
	})

	t.Run("non-ObjectID identities are kept verbatim", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t, newStore)

		ids, err := s.InsertMany(ctx, []record.RawRecord{
			doc("d", "str", "t").WithID("legacy-1"),
			doc("d", "num", "t").WithID(int32(42)),
		})
		req.NoError(err)
		req.Equal([]any{"legacy-1", int32(42)}, ids)

		got, err := s.Get(ctx, "legacy-1")
		req.NoError(err)
		gotID, _ := got.ID()
		req.Equal("legacy-1", gotID)
		req.Equal([]string{"str"}, bodies([]record.RawRecord{got}))

		// Numeric identities match across integer widths; a string of the same digits does not.
		got, err = s.Get(ctx, int64(42))
		req.NoError(err)
		req.Equal([]string{"num"}, bodies([]record.RawRecord{got}))
		_, err = s.Get(ctx, "42")
		req.ErrorIs(err, store.ErrNotFound)

		all, err := s.Find(ctx, store.Filter{}, 0, 0)
		req.NoError(err)
		listed := lo.Map(all, func(d record.RawRecord, _ int) string {
			id, _ := d.ID()
			return record.FormatID(id)
		})
		req.Equal([]string{"legacy-1", "42"}, listed)

		res, err := s.UpdateFields(ctx, "legacy-1", map[string]any{"type": "WARN"})
		req.NoError(err)
		req.Equal(store.UpdateResult{Matched: 1, Modified: 1}, res)
		req.NoError(s.Delete(ctx, int32(42)))
		_, err = s.Get(ctx, int32(42))
		req.ErrorIs(err, store.ErrNotFound)
	})

	t.Run("collection names include the active collection after a write", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t, newStore)

		_, err := s.Insert(ctx, doc("d", "a", "t"))
		req.NoError(err)

		names, err := s.CollectionNames(ctx)
		req.NoError(err)
		req.Contains(names, s.Collection())
	})
}

func open(t *testing.T, newStore Factory) store.Store {
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func bodies(docs []record.RawRecord) []string {
	return lo.Map(docs, func(d record.RawRecord, _ int) string {
		v, _ := d.Get("message")
		s, _ := v.(string)
		return s
	})
}
