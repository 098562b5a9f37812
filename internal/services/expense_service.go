package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/events"
	"kharcha/internal/storage"
)

// Store is the persistence contract the service needs. Satisfied by
// *storage.SQLiteRepository; tests substitute fakes.
type Store interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListExpenses(ctx context.Context, f storage.ListFilter) ([]core.Expense, error)
	Summarize(ctx context.Context, f storage.ListFilter, g core.Granularity) (core.Summary, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	LastExpense(ctx context.Context) (*core.Expense, error)
	MostExpensive(ctx context.Context) (*core.Expense, error)
	RunSelect(ctx context.Context, query string) ([]string, []map[string]any, error)
}

// ExpenseService implements the tracker's domain operations against an
// injected store and publishes best-effort events for recorded expenses.
type ExpenseService struct {
	store     Store
	publisher *events.Publisher
	loc       *time.Location
}

func NewExpenseService(store Store, publisher *events.Publisher, loc *time.Location) *ExpenseService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		loc:       loc,
	}
}

// Add persists a new expense from normalized model output. The timestamp is
// always stamped "now" in the configured timezone; any date the model
// extracted from the text is ignored.
func (s *ExpenseService) Add(ctx context.Context, args map[string]any, rawNL string) (core.Expense, error) {
	parsed := normalizeCreateArgs(args)

	expense, err := s.store.CreateExpense(ctx, core.Expense{
		Timestamp:    time.Now().In(s.loc),
		Amount:       parsed.Amount,
		Category:     parsed.Category,
		Description:  parsed.Description,
		RawNL:        rawNL,
		Participants: parsed.Participants,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}

	// Best effort: the expense is already saved, a broker failure only logs.
	if s.publisher != nil {
		if err := s.publisher.PublishExpenseRecorded(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to publish expense event",
				"id", expense.ID, "error", err)
		}
	}

	slog.InfoContext(ctx, "Expense recorded",
		"id", expense.ID,
		"amount", expense.Amount,
		"category", expense.Category)

	return expense, nil
}

// List returns expenses matching the filter, ordered by timestamp ascending.
func (s *ExpenseService) List(ctx context.Context, f storage.ListFilter) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Summarize totals expenses over the filter range with an optional breakdown.
func (s *ExpenseService) Summarize(ctx context.Context, f storage.ListFilter, g core.Granularity) (core.Summary, error) {
	summary, err := s.store.Summarize(ctx, f, g)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize expenses: %w", err)
	}
	return summary, nil
}

// Last returns the most recently stamped expense, or nil when none exist.
func (s *ExpenseService) Last(ctx context.Context) (*core.Expense, error) {
	expense, err := s.store.LastExpense(ctx)
	if err != nil {
		return nil, fmt.Errorf("last expense: %w", err)
	}
	return expense, nil
}

// MostExpensive returns the expense with the highest amount, or nil when
// none exist.
func (s *ExpenseService) MostExpensive(ctx context.Context) (*core.Expense, error) {
	expense, err := s.store.MostExpensive(ctx)
	if err != nil {
		return nil, fmt.Errorf("most expensive expense: %w", err)
	}
	return expense, nil
}

// Split computes the equal share of one participant in the given expense.
func (s *ExpenseService) Split(ctx context.Context, id int64, participant string) (core.Split, error) {
	expense, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Split{}, err
	}
	return expense.ShareFor(participant), nil
}

// RunSQL executes a read-only SELECT against the store. The only guard is
// the case-insensitive SELECT prefix check; anything else is rejected before
// the store is touched.
func (s *ExpenseService) RunSQL(ctx context.Context, query string) ([]string, []map[string]any, error) {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return nil, nil, core.ErrQueryNotAllowed
	}
	columns, rows, err := s.store.RunSelect(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("run sql: %w", err)
	}
	return columns, rows, nil
}

// Location returns the timezone used for stamping and rendering timestamps.
func (s *ExpenseService) Location() *time.Location {
	return s.loc
}
