package services

import (
	"errors"
	"testing"
	"time"

	"kharcha/internal/core"
)

func TestNormalizeCreateArgs(t *testing.T) {
	args := map[string]any{
		"date":        "2025-01-05",
		"amount":      9.99,
		"description": " lunch ",
		"category":    "food",
	}
	got := normalizeCreateArgs(args)
	if got.Amount != 9.99 {
		t.Fatalf("amount = %v", got.Amount)
	}
	if got.Description != "lunch" {
		t.Fatalf("description = %q", got.Description)
	}
	if got.Category != "Food" {
		t.Fatalf("category = %q, want title-cased", got.Category)
	}
}

func TestNormalizeCreateArgsDefaults(t *testing.T) {
	got := normalizeCreateArgs(map[string]any{})
	if got.Amount != 0 {
		t.Fatalf("missing amount should default to 0, got %v", got.Amount)
	}
	if got.Category != "" {
		t.Fatalf("absent category should stay absent, got %q", got.Category)
	}
	if got.Participants != nil {
		t.Fatalf("absent participants should stay nil, got %v", got.Participants)
	}
}

func TestNormalizeCreateArgsAmountCoercion(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{float64(7), 7},
		{"12.5", 12.5},
		{" 3 ", 3},
		{"not a number", 0},
		{nil, 0},
	}
	for i, tc := range cases {
		got := normalizeCreateArgs(map[string]any{"amount": tc.in})
		if got.Amount != tc.want {
			t.Fatalf("case %d: amount %v (%T) = %v, want %v", i, tc.in, tc.in, got.Amount, tc.want)
		}
	}
}

func TestNormalizeCreateArgsParticipants(t *testing.T) {
	got := normalizeCreateArgs(map[string]any{
		"participants": []any{"alice", " bob ", "", 42},
	})
	if len(got.Participants) != 2 || got.Participants[0] != "alice" || got.Participants[1] != "bob" {
		t.Fatalf("participants = %v", got.Participants)
	}
}

func TestListFilterFromDates(t *testing.T) {
	loc := time.UTC

	f := ListFilterFromDates("2025-01-01", "2025-01-31", "food", loc)
	if f.Start.IsZero() || !f.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("start = %v", f.Start)
	}
	// The inclusive end date becomes an exclusive next-day bound.
	if !f.End.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("end = %v, want 2025-02-01", f.End)
	}
	if f.Category != "Food" {
		t.Fatalf("category = %q, want normalized", f.Category)
	}

	// Invalid dates are ignored on the filter path, not defaulted.
	f = ListFilterFromDates("not-a-date", "2025-13-99", "", loc)
	if !f.Start.IsZero() || !f.End.IsZero() {
		t.Fatalf("invalid dates should yield no bounds: %+v", f)
	}
}

func TestNormalizeGranularity(t *testing.T) {
	cases := []struct {
		in   any
		want core.Granularity
	}{
		{"daily", core.Daily},
		{"WEEKLY", core.Weekly},
		{" monthly ", core.Monthly},
		{"yearly", ""},
		{nil, ""},
	}
	for i, tc := range cases {
		args := map[string]any{}
		if tc.in != nil {
			args["granularity"] = tc.in
		}
		if got := normalizeGranularity(args); got != tc.want {
			t.Fatalf("case %d: granularity = %q, want %q", i, got, tc.want)
		}
	}
}

func TestNormalizeSplitArgs(t *testing.T) {
	id, participant, err := normalizeSplitArgs(map[string]any{"expense_id": float64(12)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 12 {
		t.Fatalf("id = %d", id)
	}
	if participant != "me" {
		t.Fatalf("participant should default to me, got %q", participant)
	}

	id, participant, err = normalizeSplitArgs(map[string]any{"expense_id": "7", "participant": "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 7 || participant != "alice" {
		t.Fatalf("got id=%d participant=%q", id, participant)
	}

	_, _, err = normalizeSplitArgs(map[string]any{"participant": "alice"})
	if !errors.Is(err, core.ErrMalformedIntent) {
		t.Fatalf("missing expense_id should be malformed intent, got %v", err)
	}

	_, _, err = normalizeSplitArgs(map[string]any{"expense_id": "twelve"})
	if !errors.Is(err, core.ErrMalformedIntent) {
		t.Fatalf("non-numeric expense_id should be malformed intent, got %v", err)
	}
}

func TestNormalizeSQLArg(t *testing.T) {
	query, err := normalizeSQLArg(map[string]any{"sql": " SELECT * FROM expense "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "SELECT * FROM expense" {
		t.Fatalf("query = %q", query)
	}

	_, err = normalizeSQLArg(map[string]any{})
	if !errors.Is(err, core.ErrMalformedIntent) {
		t.Fatalf("missing sql should be malformed intent, got %v", err)
	}
}
