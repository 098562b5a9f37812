package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"kharcha/internal/ai"
	"kharcha/internal/core"
	"kharcha/internal/services"
)

// textRequest is the body of both natural-language endpoints.
type textRequest struct {
	Text string `json:"text"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		http.Error(w, "templates unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		slog.ErrorContext(r.Context(), "Failed rendering index", "error", err)
	}
}

// handleExpenses serves the direct expense API: POST parses the text through
// the classifier's direct-parse path and persists it; GET lists stored
// expenses with optional filters.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createExpense(w, r)
	case http.MethodGet:
		s.listExpenses(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}

	args, err := s.intents.ParseExpense(r.Context(), text)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to parse expense text", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := s.svc.Add(r.Context(), args, text)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to save expense", "error", err)
		writeError(w, http.StatusInternalServerError, "error saving expense")
		return
	}

	writeJSON(w, http.StatusOK, s.svc.RecordFromExpense(expense))
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.ListFilterFromDates(
		q.Get("start_date"),
		q.Get("end_date"),
		q.Get("category"),
		s.svc.Location(),
	)

	expenses, err := s.svc.List(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "error listing expenses")
		return
	}

	records := make([]services.Record, 0, len(expenses))
	for _, e := range expenses {
		records = append(records, s.svc.RecordFromExpense(e))
	}
	writeJSON(w, http.StatusOK, records)
}

// handleAsk runs the full router path and shapes the response per action.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	text, ok := decodeText(w, r)
	if !ok {
		return
	}

	result, err := s.router.Ask(r.Context(), text)
	if err != nil {
		slog.ErrorContext(r.Context(), "Ask request failed", "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, askResponse(result))
}

// askResponse maps the router's uniform result onto the per-action wire shape.
func askResponse(result *services.AskResult) map[string]any {
	if result.Action == "" {
		return map[string]any{"response": result.Response}
	}

	body := map[string]any{"action": result.Action}
	switch result.Action {
	case ai.ActionParseExpense, ai.ActionLastExpense, ai.ActionMostExpensive:
		body["expense"] = result.Expense
	case ai.ActionQueryExpenses:
		body["expenses"] = result.Expenses
	case ai.ActionSummarize:
		body["summary"] = result.Summary
	case ai.ActionSplitExpense:
		body["split"] = result.Split
	case ai.ActionRunSQL:
		body["columns"] = result.Columns
		body["rows"] = result.Rows
	}
	return body
}

// statusForError maps the error taxonomy onto HTTP status codes. Provider,
// intent and policy failures are the client's problem; only genuinely
// unexpected errors become 500s.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrExpenseNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrProviderFailure),
		errors.Is(err, core.ErrMalformedIntent),
		errors.Is(err, core.ErrQueryNotAllowed),
		errors.Is(err, core.ErrUnknownOperation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return "", false
	}
	return text, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
