// Package services implements the tracker's domain operations and the
// dispatch layer that drives them from classifier output.
//
// Argument normalization lives here: values coming back from the model are
// untrusted and loosely typed, so every operation's arguments pass through
// one of the normalize* helpers before touching domain logic.
package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

const dateLayout = "2006-01-02"

// createArgs holds the validated fields for a new expense. Note there is no
// date: creation always stamps "now" regardless of what the model extracted.
type createArgs struct {
	Amount       float64
	Description  string
	Category     string
	Participants []string
}

func normalizeCreateArgs(args map[string]any) createArgs {
	return createArgs{
		Amount:       argFloat(args, "amount"),
		Description:  strings.TrimSpace(argString(args, "description")),
		Category:     core.NormalizeCategory(argString(args, "category")),
		Participants: argStrings(args, "participants"),
	}
}

// normalizeFilterArgs builds a list filter from optional start_date/end_date/
// category arguments. Invalid date strings are ignored and apply no filter.
func normalizeFilterArgs(args map[string]any, loc *time.Location) storage.ListFilter {
	return ListFilterFromDates(
		argString(args, "start_date"),
		argString(args, "end_date"),
		argString(args, "category"),
		loc,
	)
}

// ListFilterFromDates builds a storage filter from optional ISO date strings
// and a category. Shared by the ask path and the plain list endpoint.
func ListFilterFromDates(startDate, endDate, category string, loc *time.Location) storage.ListFilter {
	f := storage.ListFilter{
		Category: core.NormalizeCategory(category),
	}
	if t, ok := parseDateArg(startDate, loc); ok {
		f.Start = t
	}
	if t, ok := parseDateArg(endDate, loc); ok {
		// End dates are inclusive: extend the exclusive bound to the next day.
		f.End = t.AddDate(0, 0, 1)
	}
	return f
}

func normalizeGranularity(args map[string]any) core.Granularity {
	g := core.Granularity(strings.ToLower(strings.TrimSpace(argString(args, "granularity"))))
	if !g.Valid() {
		return ""
	}
	return g
}

// normalizeSplitArgs extracts the required expense_id and the optional
// participant, which defaults to "me".
func normalizeSplitArgs(args map[string]any) (int64, string, error) {
	id, err := argID(args, "expense_id")
	if err != nil {
		return 0, "", err
	}
	participant := strings.TrimSpace(argString(args, "participant"))
	if participant == "" {
		participant = "me"
	}
	return id, participant, nil
}

func normalizeSQLArg(args map[string]any) (string, error) {
	query := strings.TrimSpace(argString(args, "sql"))
	if query == "" {
		return "", fmt.Errorf("%w: missing sql statement", core.ErrMalformedIntent)
	}
	return query, nil
}

// parseDateArg parses an ISO calendar date in the given location.
func parseDateArg(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func argString(args map[string]any, key string) string {
	v, ok := args[key].(string)
	if !ok {
		return ""
	}
	return v
}

// argFloat coerces a numeric argument, accepting JSON numbers and numeric
// strings. Missing or unparseable values default to zero.
func argFloat(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

// argID coerces a required integer identifier.
func argID(args map[string]any, key string) (int64, error) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return id, nil
		}
	case string:
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: missing or invalid %s", core.ErrMalformedIntent, key)
}

func argStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
