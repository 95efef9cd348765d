//go:generate go run go.uber.org/mock/mockgen -destination=../../internal/mocks/mock_store.go -package=mocks github.com/celerix-dev/celerix-messages/pkg/store Store

// Package store defines the capability interface the message service needs from a
// document store. Implementations are pure pass-through: they never normalize documents.
package store

import (
	"context"
	"errors"

	"github.com/celerix-dev/celerix-messages/pkg/record"
)

// ErrNotFound is returned when no document exists for the requested identity.
var ErrNotFound = errors.New("document not found")

// Filter is an equality filter on exact field names. An empty filter matches everything.
type Filter map[string]string

// Matches reports whether the document satisfies every equality in the filter.
func (f Filter) Matches(doc record.RawRecord) bool {
	for k, want := range f {
		v, ok := doc.Get(k)
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok || s != want {
			return false
		}
	}
	return true
}

// Identities are opaque: ObjectIDs, strings or numbers exactly as stored. Adapters compare
// them with record.IDKey and never convert one kind into another.

// UpdateResult reports the outcome of a field-set update.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// --- Functional Interfaces (Interface Segregation) ---

// Reader defines point and filtered reads.
type Reader interface {
	// Get returns the document with the given identity or ErrNotFound.
	Get(ctx context.Context, id any) (record.RawRecord, error)
	// Find returns documents matching filter in natural order. A zero limit means no limit,
	// as in MongoDB; callers that want an empty page must not call Find.
	Find(ctx context.Context, filter Filter, skip, limit int64) ([]record.RawRecord, error)
	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Writer defines single-document writes plus the bulk operations used by seeding.
type Writer interface {
	// Insert stores a new document and returns its identity.
	// A provided identity is kept verbatim; otherwise a new ObjectID is assigned.
	Insert(ctx context.Context, doc record.RawRecord) (any, error)
	// InsertMany stores documents with the same identity rules as Insert.
	InsertMany(ctx context.Context, docs []record.RawRecord) ([]any, error)
	// UpdateFields sets the given exact keys on one document.
	UpdateFields(ctx context.Context, id any, fields map[string]any) (UpdateResult, error)
	// Delete removes one document or returns ErrNotFound.
	Delete(ctx context.Context, id any) error
	// DeleteAll empties the collection and returns how many documents were removed.
	DeleteAll(ctx context.Context) (int64, error)
}

// Enumerator defines value and collection discovery.
type Enumerator interface {
	// Distinct returns the distinct values stored under the exact field name.
	Distinct(ctx context.Context, field string) ([]any, error)
	// CollectionNames lists the collections of the database.
	CollectionNames(ctx context.Context) ([]string, error)
}

// Describer exposes where the store points.
type Describer interface {
	Database() string
	Collection() string
}

// --- Composite Interface ---

// Store is the complete adapter over one collection of a document database.
type Store interface {
	Reader
	Writer
	Enumerator
	Describer

	// Close releases the underlying connection or files.
	Close(ctx context.Context) error
}
