package services

import (
	"time"

	"kharcha/internal/core"
)

// displayLayout is the human-readable timestamp form used in responses.
const displayLayout = "2006-01-02 15:04:05 MST"

// storedLayouts are the shapes a raw timestamp value may arrive in when it
// comes from the ad-hoc SQL path rather than a typed record.
var storedLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Record is the single JSON-safe result shape every operation converges on.
// Typed rows are converted once at this boundary so the router and handlers
// never have to probe which form a result arrived in.
type Record = map[string]any

// RecordFromExpense converts a typed expense into the outward response shape.
func (s *ExpenseService) RecordFromExpense(e core.Expense) Record {
	rec := Record{
		"id":          e.ID,
		"timestamp":   e.Timestamp,
		"amount":      e.Amount,
		"description": e.Description,
		"raw_nl":      e.RawNL,
	}
	if e.Category != "" {
		rec["category"] = e.Category
	} else {
		rec["category"] = nil
	}
	if len(e.Participants) > 0 {
		rec["participants"] = e.Participants
	}
	return s.LocalizeRecord(rec)
}

// RecordFromSummary converts a summary into the outward response shape.
func (s *ExpenseService) RecordFromSummary(sum core.Summary) Record {
	breakdown := make([]Record, 0, len(sum.Breakdown))
	for _, pt := range sum.Breakdown {
		breakdown = append(breakdown, Record{"period": pt.Period, "total": pt.Total})
	}
	return Record{"total": sum.Total, "breakdown": breakdown}
}

// RecordFromSplit converts a split result into the outward response shape.
func (s *ExpenseService) RecordFromSplit(sp core.Split) Record {
	return Record{
		"expense_id":  sp.ExpenseID,
		"participant": sp.Participant,
		"share":       sp.Share,
	}
}

// LocalizeRecord rewrites the record's timestamp field, if present, as a
// human-readable string in the configured timezone. Values that cannot be
// interpreted pass through unchanged; formatting never fails a request.
func (s *ExpenseService) LocalizeRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	if v, ok := rec["timestamp"]; ok {
		rec["timestamp"] = s.formatTimestamp(v)
	}
	return rec
}

func (s *ExpenseService) formatTimestamp(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.In(s.loc).Format(displayLayout)
	case string:
		for _, layout := range storedLayouts {
			if parsed, err := time.ParseInLocation(layout, t, s.loc); err == nil {
				return parsed.In(s.loc).Format(displayLayout)
			}
		}
		return t
	default:
		return v
	}
}
