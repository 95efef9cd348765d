package messages

import (
	"context"
	"fmt"
	"slices"

	"github.com/celerix-dev/celerix-messages/pkg/record"
)

var (
	seedDates = []string{"2023-01-01", "2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05"}
	seedTypes = []string{"INFO", "WARNING", "ERROR", "DEBUG"}
)

type SeedReport struct {
	Message  string   `json:"message"`
	Deleted  int64    `json:"deleted_count"`
	Inserted int      `json:"inserted_count"`
	Dates    []string `json:"dates"`
	Types    []string `json:"types"`
}

// SeedTestData replaces the whole collection with one message per date and type.
func (s *Service) SeedTestData(ctx context.Context) (SeedReport, error) {
	deleted, err := s.store.DeleteAll(ctx)
	if err != nil {
		return SeedReport{}, unavailable("clear collection", err)
	}
	s.log.Info("existing messages deleted", "count", deleted, "collection", s.store.Collection())

	docs := make([]record.RawRecord, 0, len(seedDates)*len(seedTypes))
	n := 1
	for _, d := range seedDates {
		for _, t := range seedTypes {
			docs = append(docs, record.RawRecord{
				{Key: record.FieldDate, Value: d},
				{Key: record.FieldType, Value: t},
				{Key: record.FieldMessage, Value: fmt.Sprintf("Test message %d of type %s for date %s", n, t, d)},
			})
			n++
		}
	}

	ids, err := s.store.InsertMany(ctx, docs)
	if err != nil {
		return SeedReport{}, unavailable("insert test data", err)
	}
	s.log.Info("test data inserted", "count", len(ids), "collection", s.store.Collection())

	return SeedReport{
		Message:  fmt.Sprintf("Test data created: %d messages in collection %s", len(ids), s.store.Collection()),
		Deleted:  deleted,
		Inserted: len(ids),
		Dates:    slices.Clone(seedDates),
		Types:    slices.Clone(seedTypes),
	}, nil
}
