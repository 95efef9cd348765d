// Package messages is the query and projection layer over a store.Store: every read path
// normalizes stored documents before handing them out, and Repair rewrites miscased field names.
package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/pkg/record"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

const DefaultRepairBatchSize = 1000

type Service struct {
	store       store.Store
	log         *logger.Logger
	validate    *validator.Validate
	repairBatch int64
}

type Option func(*Service)

// WithRepairBatchSize sets how many documents Repair reads per page. Non-positive values are ignored.
func WithRepairBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.repairBatch = int64(n)
		}
	}
}

func NewService(st store.Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:       st,
		log:         log.With("component", "messages.service"),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		repairBatch: DefaultRepairBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListQuery selects a page of messages. Nil or empty filters are ignored.
// A zero Limit selects nothing.
type ListQuery struct {
	Skip  int64
	Limit int64
	Type  *string
	Date  *string
}

// ListResult is a page of complete messages.
// Err is set when the store failed; Items is then empty rather than partial.
type ListResult struct {
	Items   []record.Message
	Dropped int
	Err     error
}

// Degraded reports whether the result is empty because the store failed.
func (r ListResult) Degraded() bool { return r.Err != nil }

func (s *Service) ListMessages(ctx context.Context, q ListQuery) ListResult {
	if q.Limit <= 0 {
		return ListResult{Items: []record.Message{}}
	}

	filter := store.Filter{}
	if q.Type != nil && *q.Type != "" {
		filter[record.FieldType] = *q.Type
	}
	if q.Date != nil && *q.Date != "" {
		filter[record.FieldDate] = *q.Date
	}

	docs, err := s.store.Find(ctx, filter, q.Skip, q.Limit)
	if err != nil {
		s.log.Error("listing messages failed, returning empty page", "error", err, "filter", filter)
		return ListResult{Items: []record.Message{}, Err: unavailable("find", err)}
	}

	res := ListResult{Items: make([]record.Message, 0, len(docs))}
	for _, raw := range docs {
		canon, complete := record.Normalize(raw)
		if canon.ID == nil {
			res.Dropped++
			s.log.Warn("skipping message without identity")
			continue
		}
		if !complete {
			res.Dropped++
			s.log.Warn("skipping incomplete message", "id", record.FormatID(canon.ID), "missing", canon.Missing())
			continue
		}
		msg, _ := canon.Message()
		res.Items = append(res.Items, msg)
	}
	return res
}

func (s *Service) GetMessage(ctx context.Context, id string) (record.Message, error) {
	oid, err := parseID(id)
	if err != nil {
		return record.Message{}, err
	}
	return s.load(ctx, oid)
}

// CreateInput carries the three fields of a new message. All must be present; empty strings are accepted.
type CreateInput struct {
	Date    *string `validate:"required"`
	Message *string `validate:"required"`
	Type    *string `validate:"required"`
}

func (s *Service) CreateMessage(ctx context.Context, in CreateInput) (record.Message, error) {
	if err := s.validate.Struct(in); err != nil {
		return record.Message{}, invalidPayload(err)
	}

	doc := record.RawRecord{
		{Key: record.FieldDate, Value: *in.Date},
		{Key: record.FieldMessage, Value: *in.Message},
		{Key: record.FieldType, Value: *in.Type},
	}
	id, err := s.store.Insert(ctx, doc)
	if err != nil {
		return record.Message{}, unavailable("insert", err)
	}
	s.log.Debug("message created", "id", record.FormatID(id))
	return s.load(ctx, id)
}

// Patch holds the fields to overwrite. Nil fields are left untouched.
type Patch struct {
	Date    *string
	Message *string
	Type    *string
}

func (p Patch) fields() map[string]any {
	out := make(map[string]any, 3)
	if p.Date != nil {
		out[record.FieldDate] = *p.Date
	}
	if p.Message != nil {
		out[record.FieldMessage] = *p.Message
	}
	if p.Type != nil {
		out[record.FieldType] = *p.Type
	}
	return out
}

func (s *Service) UpdateMessage(ctx context.Context, id string, patch Patch) (record.Message, error) {
	oid, err := parseID(id)
	if err != nil {
		return record.Message{}, err
	}
	fields := patch.fields()
	if len(fields) == 0 {
		return record.Message{}, ErrNoUpdateFields
	}

	if _, err := s.store.Get(ctx, oid); err != nil {
		return record.Message{}, s.readErr("get", oid, err)
	}
	res, err := s.store.UpdateFields(ctx, oid, fields)
	if err != nil {
		return record.Message{}, unavailable("update", err)
	}
	if res.Matched == 0 {
		return record.Message{}, notFound(oid.Hex())
	}
	s.log.Debug("message updated", "id", oid.Hex(), "fields", lo.Keys(fields), "modified", res.Modified)
	return s.load(ctx, oid)
}

type DeleteResult struct {
	Message string `json:"message"`
}

func (s *Service) DeleteMessage(ctx context.Context, id string) (DeleteResult, error) {
	oid, err := parseID(id)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := s.store.Delete(ctx, oid); err != nil {
		return DeleteResult{}, s.readErr("delete", oid, err)
	}
	s.log.Debug("message deleted", "id", oid.Hex())
	return DeleteResult{Message: fmt.Sprintf("Message with ID %s deleted successfully", oid.Hex())}, nil
}

func (s *Service) ListDistinctTypes(ctx context.Context) []string {
	return s.distinct(ctx, record.FieldType)
}

func (s *Service) ListDistinctDates(ctx context.Context) []string {
	return s.distinct(ctx, record.FieldDate)
}

func (s *Service) distinct(ctx context.Context, field string) []string {
	values, err := s.store.Distinct(ctx, field)
	if err != nil {
		s.log.Error("distinct lookup failed, returning empty list", "field", field, "error", err)
		return []string{}
	}
	return lo.FilterMap(values, func(v any, _ int) (string, bool) {
		if v == nil {
			return "", false
		}
		if str, ok := v.(string); ok {
			return str, true
		}
		return fmt.Sprint(v), true
	})
}

// DatabaseInfo describes where the service reads and writes.
type DatabaseInfo struct {
	DatabaseName         string   `json:"database_name"`
	CurrentCollection    string   `json:"current_collection"`
	AvailableCollections []string `json:"available_collections"`
	DocumentCount        int64    `json:"document_count"`
}

func (s *Service) DatabaseInfo(ctx context.Context) (DatabaseInfo, error) {
	names, err := s.store.CollectionNames(ctx)
	if err != nil {
		return DatabaseInfo{}, unavailable("list collections", err)
	}
	n, err := s.store.Count(ctx, store.Filter{})
	if err != nil {
		return DatabaseInfo{}, unavailable("count", err)
	}
	if names == nil {
		names = []string{}
	}
	return DatabaseInfo{
		DatabaseName:         s.store.Database(),
		CurrentCollection:    s.store.Collection(),
		AvailableCollections: names,
		DocumentCount:        n,
	}, nil
}

// load reads one document and projects it, failing on incomplete records.
func (s *Service) load(ctx context.Context, id any) (record.Message, error) {
	raw, err := s.store.Get(ctx, id)
	if err != nil {
		return record.Message{}, s.readErr("get", id, err)
	}
	canon, complete := record.Normalize(raw)
	if !complete {
		return record.Message{}, &MissingFieldsError{ID: record.FormatID(id), Fields: canon.Missing()}
	}
	msg, _ := canon.Message()
	return msg, nil
}

func (s *Service) readErr(op string, id any, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(record.FormatID(id))
	}
	return unavailable(op, err)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return oid, nil
}

func invalidPayload(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		missing := lo.Map(verrs, func(fe validator.FieldError, _ int) string { return strings.ToLower(fe.Field()) })
		return fmt.Errorf("%w: missing %v", ErrInvalidPayload, missing)
	}
	return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
}
