// Package badgerstore keeps documents in an embedded BadgerDB.
//
// Key layout:
//
//	col:<collection>               marker, one per collection ever written
//	doc:<collection>:<seq>         BSON document, seq zero-padded so keys sort in insertion order
//	idx:<collection>:<record.IDKey> the doc key holding that identity
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/pkg/record"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

// ErrDuplicateID is returned when an insert carries an identity that already exists.
var ErrDuplicateID = errors.New("duplicate _id")

const seqBandwidth = 256

type Store struct {
	db         *badger.DB
	seq        *badger.Sequence
	database   string
	collection string
	ownsDB     bool
	log        *logger.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) a Badger directory at path and binds it to collection.
func Open(path, database, collection string, log *logger.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	s, err := New(db, database, collection, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New wraps an already open database. The caller keeps ownership of db.
func New(db *badger.DB, database, collection string, log *logger.Logger) (*Store, error) {
	seq, err := db.GetSequence([]byte("seq:"+collection), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("allocate sequence: %w", err)
	}
	return &Store{
		db:         db,
		seq:        seq,
		database:   database,
		collection: collection,
		log:        log.With("component", "badgerstore", "collection", collection),
	}, nil
}

func (s *Store) Database() string   { return s.database }
func (s *Store) Collection() string { return s.collection }

func (s *Store) Close(_ context.Context) error {
	err := s.seq.Release()
	if s.ownsDB {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

func (s *Store) docPrefix() []byte { return []byte("doc:" + s.collection + ":") }

func (s *Store) docKey(n uint64) []byte {
	return []byte(fmt.Sprintf("doc:%s:%020d", s.collection, n))
}

func (s *Store) idxKey(id any) []byte {
	return []byte("idx:" + s.collection + ":" + record.IDKey(id))
}

func (s *Store) Get(_ context.Context, id any) (record.RawRecord, error) {
	var doc record.RawRecord
	err := s.db.View(func(txn *badger.Txn) error {
		_, d, err := s.lookup(txn, id)
		doc = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) Find(_ context.Context, filter store.Filter, skip, limit int64) ([]record.RawRecord, error) {
	var out []record.RawRecord
	var matched int64
	err := s.scan(func(doc record.RawRecord) bool {
		if !filter.Matches(doc) {
			return true
		}
		matched++
		if matched <= skip {
			return true
		}
		out = append(out, doc)
		return limit <= 0 || int64(len(out)) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, filter store.Filter) (int64, error) {
	var n int64
	err := s.scan(func(doc record.RawRecord) bool {
		if filter.Matches(doc) {
			n++
		}
		return true
	})
	return n, err
}

func (s *Store) Distinct(_ context.Context, field string) ([]any, error) {
	var out []any
	err := s.scan(func(doc record.RawRecord) bool {
		v, ok := doc.Get(field)
		if !ok {
			return true
		}
		for _, existing := range out {
			if reflect.DeepEqual(existing, v) {
				return true
			}
		}
		out = append(out, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CollectionNames(_ context.Context) ([]string, error) {
	names := []string{s.collection}
	prefix := []byte("col:")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name := strings.TrimPrefix(string(it.Item().Key()), "col:")
			if name != s.collection {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Insert(ctx context.Context, doc record.RawRecord) (any, error) {
	ids, err := s.InsertMany(ctx, []record.RawRecord{doc})
	if err != nil {
		return nil, err
	}
	return ids[0], nil
}

func (s *Store) InsertMany(_ context.Context, docs []record.RawRecord) ([]any, error) {
	// Leases may commit their own transaction, so sequence numbers are taken up front.
	seqs := make([]uint64, len(docs))
	for i := range docs {
		n, err := s.seq.Next()
		if err != nil {
			return nil, fmt.Errorf("next sequence: %w", err)
		}
		seqs[i] = n
	}

	ids := make([]any, 0, len(docs))
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("col:"+s.collection), nil); err != nil {
			return err
		}
		for i, doc := range docs {
			id, ok := doc.ID()
			if !ok {
				id = primitive.NewObjectID()
			}
			if _, err := txn.Get(s.idxKey(id)); err == nil {
				return fmt.Errorf("%w: %s", ErrDuplicateID, record.FormatID(id))
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			key := s.docKey(seqs[i])
			if err := s.put(txn, key, doc.WithID(id)); err != nil {
				return err
			}
			if err := txn.Set(s.idxKey(id), key); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) UpdateFields(_ context.Context, id any, fields map[string]any) (store.UpdateResult, error) {
	var res store.UpdateResult
	err := s.db.Update(func(txn *badger.Txn) error {
		key, doc, err := s.lookup(txn, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res.Matched = 1

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		changed := false
		for _, k := range keys {
			if doc.Set(k, fields[k]) {
				changed = true
			}
		}
		if !changed {
			return nil
		}
		res.Modified = 1
		return s.put(txn, key, doc)
	})
	return res, err
}

func (s *Store) Delete(_ context.Context, id any) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key, _, err := s.lookup(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(s.idxKey(id))
	})
}

func (s *Store) DeleteAll(_ context.Context) (int64, error) {
	var keys [][]byte
	var n int64
	docPrefix := s.docPrefix()
	idxPrefix := []byte("idx:" + s.collection + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(docPrefix); it.ValidForPrefix(docPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
			n++
		}
		for it.Seek(idxPrefix); it.ValidForPrefix(idxPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("clear collection %s: %w", s.collection, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("clear collection %s: %w", s.collection, err)
	}
	s.log.Debug("collection cleared", "deleted", n)
	return n, nil
}

// lookup resolves an identity to its doc key and decoded document.
func (s *Store) lookup(txn *badger.Txn, id any) ([]byte, record.RawRecord, error) {
	idx, err := txn.Get(s.idxKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, store.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	key, err := idx.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, store.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	var doc record.RawRecord
	err = item.Value(func(v []byte) error {
		doc, err = decode(v)
		return err
	})
	return key, doc, err
}

func (s *Store) put(txn *badger.Txn, key []byte, doc record.RawRecord) error {
	data, err := bson.Marshal(doc.BSON())
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return txn.Set(key, data)
}

// scan walks the active collection in insertion order until fn returns false.
func (s *Store) scan(fn func(record.RawRecord) bool) error {
	prefix := s.docPrefix()
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var doc record.RawRecord
			err := it.Item().Value(func(v []byte) error {
				var err error
				doc, err = decode(v)
				return err
			})
			if err != nil {
				return err
			}
			if !fn(doc) {
				return nil
			}
		}
		return nil
	})
}

func decode(v []byte) (record.RawRecord, error) {
	var d bson.D
	if err := bson.Unmarshal(v, &d); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return record.FromBSON(d), nil
}
