package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kharcha/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout is the stored form of expense timestamps. Plain local
// datetime text keeps SQLite strftime() and lexicographic date comparisons
// working on the raw column, which the ad-hoc SQL path relies on.
const timestampLayout = "2006-01-02 15:04:05"

// strftime formats per summary granularity.
var periodFormats = map[core.Granularity]string{
	core.Daily:   "%Y-%m-%d",
	core.Weekly:  "%Y-%W",
	core.Monthly: "%Y-%m",
}

// ListFilter narrows ListExpenses results. Zero times mean "no bound";
// End is an exclusive upper bound (callers extend inclusive end dates).
type ListFilter struct {
	Start    time.Time
	End      time.Time
	Category string
}

// SQLiteRepository persists expenses in a local SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	loc *time.Location
}

func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}

	return &SQLiteRepository{db: db, loc: loc}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateExpense inserts a new expense and returns it with the assigned ID.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	participants, err := marshalParticipants(e.Participants)
	if err != nil {
		return core.Expense{}, fmt.Errorf("encode participants: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expense (timestamp, amount, category, description, raw_nl, participants)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp.In(r.loc).Format(timestampLayout),
		e.Amount,
		nullable(e.Category),
		nullable(e.Description),
		e.RawNL,
		participants,
	)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return e, nil
}

// ListExpenses returns expenses matching the filter, ordered by timestamp ascending.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ListFilter) ([]core.Expense, error) {
	query := `SELECT id, timestamp, amount, category, description, raw_nl, participants FROM expense`
	where, args := filterClauses(f, r.loc)
	query += where + ` ORDER BY timestamp, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := r.scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// Summarize computes the total amount over the filter range and, for a valid
// granularity, a per-period breakdown ordered by period ascending.
func (r *SQLiteRepository) Summarize(ctx context.Context, f ListFilter, g core.Granularity) (core.Summary, error) {
	summary := core.Summary{Breakdown: []core.PeriodTotal{}}

	where, args := filterClauses(f, r.loc)
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM expense`+where, args...,
	).Scan(&summary.Total)
	if err != nil {
		return summary, fmt.Errorf("sum expenses: %w", err)
	}

	format, ok := periodFormats[g]
	if !ok {
		return summary, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT strftime('`+format+`', timestamp) AS period, SUM(amount) AS total
		 FROM expense`+where+`
		 GROUP BY period ORDER BY period`, args...,
	)
	if err != nil {
		return summary, fmt.Errorf("breakdown expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pt core.PeriodTotal
		if err := rows.Scan(&pt.Period, &pt.Total); err != nil {
			return summary, fmt.Errorf("scan breakdown row: %w", err)
		}
		summary.Breakdown = append(summary.Breakdown, pt)
	}
	if err := rows.Err(); err != nil {
		return summary, fmt.Errorf("iterate breakdown: %w", err)
	}
	return summary, nil
}

// GetExpense returns the expense with the given ID or core.ErrExpenseNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, timestamp, amount, category, description, raw_nl, participants
		 FROM expense WHERE id = ?`, id)
	e, err := r.scanExpense(row)
	if err == sql.ErrNoRows {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrExpenseNotFound)
	}
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// LastExpense returns the most recently stamped expense, or nil when the
// store is empty.
func (r *SQLiteRepository) LastExpense(ctx context.Context) (*core.Expense, error) {
	return r.firstBy(ctx, `ORDER BY timestamp DESC, id DESC`)
}

// MostExpensive returns the expense with the highest amount, or nil when the
// store is empty. Ties break by storage order.
func (r *SQLiteRepository) MostExpensive(ctx context.Context) (*core.Expense, error) {
	return r.firstBy(ctx, `ORDER BY amount DESC, id`)
}

func (r *SQLiteRepository) firstBy(ctx context.Context, order string) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, timestamp, amount, category, description, raw_nl, participants
		 FROM expense `+order+` LIMIT 1`)
	e, err := r.scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// RunSelect executes a caller-supplied SELECT statement and returns column
// names plus rows as generic mappings. Callers are responsible for the
// SELECT-only policy gate; no further validation happens here.
func (r *SQLiteRepository) RunSelect(ctx context.Context, query string) ([]string, []map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("run select: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("select columns: %w", err)
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan select row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate select rows: %w", err)
	}
	return columns, results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e            core.Expense
		ts           string
		category     sql.NullString
		description  sql.NullString
		participants sql.NullString
	)
	if err := row.Scan(&e.ID, &ts, &e.Amount, &category, &description, &e.RawNL, &participants); err != nil {
		if err == sql.ErrNoRows {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	parsed, err := time.ParseInLocation(timestampLayout, ts, r.loc)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse stored timestamp %q: %w", ts, err)
	}
	e.Timestamp = parsed
	e.Category = category.String
	e.Description = description.String
	if participants.Valid && participants.String != "" {
		if err := json.Unmarshal([]byte(participants.String), &e.Participants); err != nil {
			return core.Expense{}, fmt.Errorf("decode participants: %w", err)
		}
	}
	return e, nil
}

func filterClauses(f ListFilter, loc *time.Location) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if !f.Start.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, f.Start.In(loc).Format(timestampLayout))
	}
	if !f.End.IsZero() {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, f.End.In(loc).Format(timestampLayout))
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func marshalParticipants(participants []string) (any, error) {
	if len(participants) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(participants)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
