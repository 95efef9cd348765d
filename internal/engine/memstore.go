package engine

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/pkg/record"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

// MemStore is a thread-safe in-memory document database bound to one active collection.
// Documents keep insertion order, which is the natural order Find returns.
type MemStore struct {
	mu         sync.RWMutex
	database   string
	collection string
	// Structure: [collection][]document
	data map[string][]record.RawRecord
	seq  uint64

	persister *Persistence
	log       *logger.Logger
	wg        sync.WaitGroup
	saveMu    sync.Mutex
	savedSeq  map[string]uint64
}

var _ store.Store = (*MemStore)(nil)

// NewMemStore initializes a store over the named collection.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(database, collection string, initialData map[string][]record.RawRecord, p *Persistence, log *logger.Logger) *MemStore {
	if initialData == nil {
		initialData = make(map[string][]record.RawRecord)
	}
	if _, ok := initialData[collection]; !ok {
		initialData[collection] = nil
	}
	return &MemStore{
		database:   database,
		collection: collection,
		data:       initialData,
		persister:  p,
		log:        log.With("component", "engine.memstore", "collection", collection),
		savedSeq:   make(map[string]uint64),
	}
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

func (m *MemStore) Database() string   { return m.database }
func (m *MemStore) Collection() string { return m.collection }

func (m *MemStore) Close(_ context.Context) error {
	m.Wait()
	return nil
}

// --- Interface Implementation ---

func (m *MemStore) Get(_ context.Context, id any) (record.RawRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	return m.data[m.collection][i].Clone(), nil
}

func (m *MemStore) Find(_ context.Context, filter store.Filter, skip, limit int64) ([]record.RawRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []record.RawRecord
	var matched int64
	for _, doc := range m.data[m.collection] {
		if !filter.Matches(doc) {
			continue
		}
		matched++
		if matched <= skip {
			continue
		}
		out = append(out, doc.Clone())
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) Count(_ context.Context, filter store.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, doc := range m.data[m.collection] {
		if filter.Matches(doc) {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) Distinct(_ context.Context, field string) ([]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []any
	for _, doc := range m.data[m.collection] {
		v, ok := doc.Get(field)
		if !ok {
			continue
		}
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MemStore) CollectionNames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for name := range m.data {
		list = append(list, name)
	}
	sort.Strings(list)
	return list, nil
}

func (m *MemStore) Insert(ctx context.Context, doc record.RawRecord) (any, error) {
	ids, err := m.InsertMany(ctx, []record.RawRecord{doc})
	if err != nil {
		return nil, err
	}
	return ids[0], nil
}

func (m *MemStore) InsertMany(_ context.Context, docs []record.RawRecord) ([]any, error) {
	m.mu.Lock()
	ids := make([]any, 0, len(docs))
	staged := make([]record.RawRecord, 0, len(docs))
	pending := make(map[string]bool, len(docs))
	for _, doc := range docs {
		id, ok := doc.ID()
		if !ok {
			id = primitive.NewObjectID()
		}
		key := record.IDKey(id)
		if m.indexOf(id) >= 0 || pending[key] {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, record.FormatID(id))
		}
		pending[key] = true
		ids = append(ids, id)
		staged = append(staged, doc.WithID(id))
	}
	m.data[m.collection] = append(m.data[m.collection], staged...)
	m.unlockAndPersist()
	return ids, nil
}

func (m *MemStore) UpdateFields(_ context.Context, id any, fields map[string]any) (store.UpdateResult, error) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return store.UpdateResult{}, nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := m.data[m.collection][i].Clone()
	changed := false
	for _, k := range keys {
		if doc.Set(k, fields[k]) {
			changed = true
		}
	}
	if !changed {
		m.mu.Unlock()
		return store.UpdateResult{Matched: 1}, nil
	}
	m.data[m.collection][i] = doc
	m.unlockAndPersist()
	return store.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (m *MemStore) Delete(_ context.Context, id any) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return store.ErrNotFound
	}
	docs := m.data[m.collection]
	m.data[m.collection] = append(docs[:i:i], docs[i+1:]...)
	m.unlockAndPersist()
	return nil
}

func (m *MemStore) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	n := int64(len(m.data[m.collection]))
	m.data[m.collection] = nil
	m.unlockAndPersist()
	return n, nil
}

// indexOf returns the position of the document in the active collection, or -1.
// It MUST be called while holding m.mu.Lock or m.mu.RLock.
func (m *MemStore) indexOf(id any) int {
	want := record.IDKey(id)
	for i, doc := range m.data[m.collection] {
		if docID, ok := doc.ID(); ok && record.IDKey(docID) == want {
			return i
		}
	}
	return -1
}

// unlockAndPersist snapshots the active collection, releases m.mu and saves the snapshot
// in the background. It MUST be called while holding m.mu.Lock.
func (m *MemStore) unlockAndPersist() {
	if m.persister == nil {
		m.mu.Unlock()
		return
	}
	m.seq++
	seq := m.seq
	name := m.collection
	snapshot := make([]record.RawRecord, len(m.data[name]))
	for i, doc := range m.data[name] {
		snapshot[i] = doc.Clone()
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.save(name, seq, snapshot)
	}()
}

// save writes a snapshot unless a newer one already reached the disk.
func (m *MemStore) save(name string, seq uint64, docs []record.RawRecord) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	if seq <= m.savedSeq[name] {
		return
	}
	if err := m.persister.SaveCollection(name, docs); err != nil {
		m.log.Error("persisting collection failed", "error", err)
		return
	}
	m.savedSeq[name] = seq
}

func containsValue(list []any, v any) bool {
	for _, existing := range list {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}
