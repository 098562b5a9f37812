package core

import (
	"math"
	"testing"
)

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"food", "Food"},
		{"FOOD", "Food"},
		{"  street food  ", "Street Food"},
		{"", ""},
		{"   ", ""},
		{"Transportation", "Transportation"},
	}
	for i, tc := range cases {
		if got := NormalizeCategory(tc.in); got != tc.want {
			t.Fatalf("case %d: NormalizeCategory(%q) = %q, want %q", i, tc.in, got, tc.want)
		}
	}
}

func TestGranularityValid(t *testing.T) {
	for _, g := range []Granularity{Daily, Weekly, Monthly} {
		if !g.Valid() {
			t.Fatalf("expected %q to be valid", g)
		}
	}
	for _, g := range []Granularity{"", "yearly", "DAILY"} {
		if g.Valid() {
			t.Fatalf("expected %q to be invalid", g)
		}
	}
}

func TestSplitParticipantsDefaultsToMe(t *testing.T) {
	e := Expense{}
	got := e.SplitParticipants()
	if len(got) != 1 || got[0] != "me" {
		t.Fatalf("expected [me], got %v", got)
	}

	e.Participants = []string{"alice", "bob"}
	got = e.SplitParticipants()
	if len(got) != 2 || got[0] != "alice" {
		t.Fatalf("expected stored participants, got %v", got)
	}
}

func TestShareFor(t *testing.T) {
	three := Expense{ID: 7, Amount: 90, Participants: []string{"a", "b", "c"}}
	for _, p := range []string{"a", "b", "c"} {
		split := three.ShareFor(p)
		if split.Share != 30 {
			t.Fatalf("participant %q: share = %v, want 30", p, split.Share)
		}
		if split.ExpenseID != 7 || split.Participant != p {
			t.Fatalf("unexpected split identity: %+v", split)
		}
	}

	// No participants: the full amount goes to "me".
	solo := Expense{ID: 1, Amount: 42.5}
	if split := solo.ShareFor("me"); split.Share != 42.5 {
		t.Fatalf("solo share = %v, want 42.5", split.Share)
	}
}

func TestShareForNonFiniteAmountFallsBack(t *testing.T) {
	e := Expense{ID: 2, Amount: math.NaN(), Participants: []string{"a", "b"}}
	split := e.ShareFor("a")
	if !math.IsNaN(split.Share) {
		t.Fatalf("expected the raw amount back, got %v", split.Share)
	}
}
