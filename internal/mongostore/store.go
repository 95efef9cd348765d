// Package mongostore is the MongoDB-backed store.Store.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/pkg/record"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

type Store struct {
	client     *mongo.Client
	db         *mongo.Database
	coll       *mongo.Collection
	ownsClient bool
	log        *logger.Logger
}

var _ store.Store = (*Store)(nil)

// Connect dials uri, pings the primary and binds the store to database/collection.
// timeout bounds server selection and the initial ping.
func Connect(ctx context.Context, uri, database, collection string, timeout time.Duration, log *logger.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client, database, collection, log)
	s.ownsClient = true
	return s, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *mongo.Client, database, collection string, log *logger.Logger) *Store {
	db := client.Database(database)
	return &Store{
		client: client,
		db:     db,
		coll:   db.Collection(collection),
		log:    log.With("component", "mongostore", "database", database, "collection", collection),
	}
}

func (s *Store) Database() string   { return s.db.Name() }
func (s *Store) Collection() string { return s.coll.Name() }

func (s *Store) Close(ctx context.Context) error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, id any) (record.RawRecord, error) {
	var d bson.D
	err := s.coll.FindOne(ctx, bson.D{{Key: record.IdentityKey, Value: id}}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", record.FormatID(id), err)
	}
	return record.FromBSON(d), nil
}

func (s *Store) Find(ctx context.Context, filter store.Filter, skip, limit int64) ([]record.RawRecord, error) {
	opts := options.Find()
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.coll.Find(ctx, toBSON(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	out := make([]record.RawRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, record.FromBSON(d))
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, filter store.Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) Distinct(ctx context.Context, field string) ([]any, error) {
	values, err := s.coll.Distinct(ctx, field, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	return values, nil
}

func (s *Store) CollectionNames(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Insert(ctx context.Context, doc record.RawRecord) (any, error) {
	id, ok := doc.ID()
	if !ok {
		id = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, doc.WithID(id).BSON()); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return id, nil
}

func (s *Store) InsertMany(ctx context.Context, docs []record.RawRecord) ([]any, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	ids := make([]any, 0, len(docs))
	batch := make([]any, 0, len(docs))
	for _, doc := range docs {
		id, ok := doc.ID()
		if !ok {
			id = primitive.NewObjectID()
		}
		ids = append(ids, id)
		batch = append(batch, doc.WithID(id).BSON())
	}
	if _, err := s.coll.InsertMany(ctx, batch); err != nil {
		return nil, fmt.Errorf("insert many: %w", err)
	}
	return ids, nil
}

func (s *Store) UpdateFields(ctx context.Context, id any, fields map[string]any) (store.UpdateResult, error) {
	set := make(bson.D, 0, len(fields))
	for k, v := range fields {
		set = append(set, bson.E{Key: k, Value: v})
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Key < set[j].Key })

	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: record.IdentityKey, Value: id}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update %s: %w", record.FormatID(id), err)
	}
	return store.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *Store) Delete(ctx context.Context, id any) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: record.IdentityKey, Value: id}})
	if err != nil {
		return fmt.Errorf("delete %s: %w", record.FormatID(id), err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return res.DeletedCount, nil
}

func toBSON(f store.Filter) bson.D {
	out := make(bson.D, 0, len(f))
	for k, v := range f {
		out = append(out, bson.E{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
