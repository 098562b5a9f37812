package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kharcha/internal/ai"
	"kharcha/internal/core"
	"kharcha/internal/metrics"
)

// Router ties classifier, normalizer, domain operations and response
// normalization together for one inbound request.
type Router struct {
	intents ai.Intents
	svc     *ExpenseService
}

func NewRouter(intents ai.Intents, svc *ExpenseService) *Router {
	return &Router{intents: intents, svc: svc}
}

// AskResult is the router's uniform response. Action is empty for free-text
// replies; otherwise exactly one of the payload fields is populated for it.
type AskResult struct {
	Action   string
	Response string
	Expense  Record
	Expenses []Record
	Summary  Record
	Split    Record
	Columns  []string
	Rows     []Record
}

// Ask runs the full pipeline: classify, normalize arguments, dispatch the
// matching operation and normalize its result.
func (r *Router) Ask(ctx context.Context, text string) (*AskResult, error) {
	intent, err := r.intents.Classify(ctx, text)
	if err != nil {
		metrics.ClassifierErrors.Inc()
		if errors.Is(err, core.ErrMalformedIntent) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrProviderFailure, err)
	}

	// No operation selected: answer with the model's free text.
	if intent.Action == "" {
		return &AskResult{Response: intent.Content}, nil
	}

	slog.InfoContext(ctx, "Dispatching operation", "action", intent.Action)
	metrics.AskActions.WithLabelValues(intent.Action).Inc()

	return r.dispatch(ctx, intent, text)
}

func (r *Router) dispatch(ctx context.Context, intent *ai.Intent, text string) (*AskResult, error) {
	switch intent.Action {
	case ai.ActionParseExpense:
		expense, err := r.svc.Add(ctx, intent.Args, text)
		if err != nil {
			return nil, err
		}
		return &AskResult{
			Action:  ai.ActionParseExpense,
			Expense: r.svc.RecordFromExpense(expense),
		}, nil

	case ai.ActionQueryExpenses:
		filter := normalizeFilterArgs(intent.Args, r.svc.Location())
		expenses, err := r.svc.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		records := make([]Record, 0, len(expenses))
		for _, e := range expenses {
			records = append(records, r.svc.RecordFromExpense(e))
		}
		return &AskResult{Action: ai.ActionQueryExpenses, Expenses: records}, nil

	case ai.ActionSummarize:
		filter := normalizeFilterArgs(intent.Args, r.svc.Location())
		summary, err := r.svc.Summarize(ctx, filter, normalizeGranularity(intent.Args))
		if err != nil {
			return nil, err
		}
		return &AskResult{
			Action:  ai.ActionSummarize,
			Summary: r.svc.RecordFromSummary(summary),
		}, nil

	case ai.ActionLastExpense:
		return r.lastExpenseWithFallback(ctx, text)

	case ai.ActionSplitExpense:
		id, participant, err := normalizeSplitArgs(intent.Args)
		if err != nil {
			return nil, err
		}
		split, err := r.svc.Split(ctx, id, participant)
		if err != nil {
			return nil, err
		}
		return &AskResult{
			Action: ai.ActionSplitExpense,
			Split:  r.svc.RecordFromSplit(split),
		}, nil

	case ai.ActionMostExpensive:
		expense, err := r.svc.MostExpensive(ctx)
		if err != nil {
			return nil, err
		}
		result := &AskResult{Action: ai.ActionMostExpensive}
		if expense != nil {
			result.Expense = r.svc.RecordFromExpense(*expense)
		}
		return result, nil

	case ai.ActionRunSQL:
		query, err := normalizeSQLArg(intent.Args)
		if err != nil {
			return nil, err
		}
		columns, rows, err := r.svc.RunSQL(ctx, query)
		if err != nil {
			return nil, err
		}
		records := make([]Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, r.svc.LocalizeRecord(row))
		}
		return &AskResult{Action: ai.ActionRunSQL, Columns: columns, Rows: records}, nil

	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownOperation, intent.Action)
	}
}

// lastExpenseWithFallback compensates for classifier ambiguity: utterances
// that actually describe a new expense are sometimes classified as a
// last-expense query, so the text is first reinterpreted through the direct
// parse path. Only when that fails is the stored last expense returned.
func (r *Router) lastExpenseWithFallback(ctx context.Context, text string) (*AskResult, error) {
	if args, err := r.intents.ParseExpense(ctx, text); err == nil {
		expense, err := r.svc.Add(ctx, args, text)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Reinterpreted last-expense query as new expense", "id", expense.ID)
		return &AskResult{
			Action:  ai.ActionParseExpense,
			Expense: r.svc.RecordFromExpense(expense),
		}, nil
	}

	expense, err := r.svc.Last(ctx)
	if err != nil {
		return nil, err
	}
	result := &AskResult{Action: ai.ActionLastExpense}
	if expense != nil {
		result.Expense = r.svc.RecordFromExpense(*expense)
	}
	return result, nil
}
