package messages

import (
	"context"
	"fmt"

	"github.com/celerix-dev/celerix-messages/pkg/record"
	"github.com/celerix-dev/celerix-messages/pkg/store"
)

type RepairReport struct {
	Message  string `json:"message"`
	Repaired int    `json:"repaired_count"`
	Skipped  int    `json:"skipped_count"`
	Total    int    `json:"total_messages"`
}

// Repair copies capitalized variants (Date, Message, Type) onto their canonical lowercase names
// wherever the canonical field is absent. The capitalized originals stay in place and values are
// never touched, so running it twice repairs nothing the second time.
//
// A store failure aborts the pass; documents repaired before it stay repaired.
func (s *Service) Repair(ctx context.Context) (RepairReport, error) {
	var report RepairReport
	log := s.log.With("op", "repair")

	for skip := int64(0); ; skip += s.repairBatch {
		docs, err := s.store.Find(ctx, store.Filter{}, skip, s.repairBatch)
		if err != nil {
			return report, unavailable("repair scan", err)
		}
		for _, doc := range docs {
			report.Total++

			staged := stageRepair(doc)
			if len(staged) == 0 {
				report.Skipped++
				continue
			}
			id, ok := doc.ID()
			if !ok {
				log.Warn("document without identity, skipping", "index", report.Total-1)
				report.Skipped++
				continue
			}
			res, err := s.store.UpdateFields(ctx, id, staged)
			if err != nil {
				return report, unavailable("repair update", err)
			}
			if res.Modified > 0 {
				report.Repaired++
				log.Debug("message repaired", "id", record.FormatID(id), "fields", len(staged))
			} else {
				report.Skipped++
				log.Warn("repair did not modify message", "id", record.FormatID(id))
			}
		}
		if int64(len(docs)) < s.repairBatch {
			break
		}
	}

	report.Message = fmt.Sprintf("Repair finished. %d messages repaired, %d messages skipped.", report.Repaired, report.Skipped)
	log.Info("repair finished", "repaired", report.Repaired, "skipped", report.Skipped, "total", report.Total)
	return report, nil
}

// stageRepair returns field <- Field for every canonical name missing from doc whose
// capitalized variant is present.
func stageRepair(doc record.RawRecord) map[string]any {
	staged := make(map[string]any)
	for _, name := range record.RequiredFields {
		if doc.Has(name) {
			continue
		}
		if v, ok := doc.Get(record.Capitalize(name)); ok {
			staged[name] = v
		}
	}
	return staged
}
