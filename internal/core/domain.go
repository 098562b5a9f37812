package core

import (
	"errors"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

type (
	// Granularity selects the bucketing period for summaries.
	Granularity string

	// Expense is a single recorded expense. Timestamp is stamped by the
	// system at insert time in the configured timezone and is never taken
	// from user input.
	Expense struct {
		ID           int64
		Timestamp    time.Time
		Amount       float64
		Category     string
		Description  string
		RawNL        string
		Participants []string
	}

	// Summary holds the total spend over a range plus an optional
	// per-period breakdown.
	Summary struct {
		Total     float64
		Breakdown []PeriodTotal
	}

	PeriodTotal struct {
		Period string
		Total  float64
	}

	// Split is the computed equal share of one participant in an expense.
	Split struct {
		ExpenseID   int64
		Participant string
		Share       float64
	}
)

var (
	ErrProviderFailure  = errors.New("language model call failed")
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrMalformedIntent  = errors.New("malformed intent arguments")
	ErrQueryNotAllowed  = errors.New("only SELECT statements are allowed")
	ErrUnknownOperation = errors.New("unknown operation")
)

var titleCaser = cases.Title(language.English)

// NormalizeCategory trims and title-cases a category so repeated categories
// compare equal regardless of input casing. Empty input stays empty.
func NormalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return titleCaser.String(s)
}

// Valid reports whether g is one of the supported granularities.
func (g Granularity) Valid() bool {
	switch g {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// SplitParticipants returns the participant list used for share computation:
// the stored list, or ["me"] when none were recorded.
func (e Expense) SplitParticipants() []string {
	if len(e.Participants) == 0 {
		return []string{"me"}
	}
	return e.Participants
}

// ShareFor computes the equal share for one participant. A non-finite amount
// falls back to the full amount rather than failing.
func (e Expense) ShareFor(participant string) Split {
	split := Split{ExpenseID: e.ID, Participant: participant, Share: e.Amount}
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return split
	}
	split.Share = divideAmount(e.Amount, len(e.SplitParticipants()))
	return split
}
