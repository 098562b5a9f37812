package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kharcha/internal/ai"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

// fakeIntents scripts classifier behavior for handler tests.
type fakeIntents struct {
	intent    *ai.Intent
	err       error
	parseArgs map[string]any
	parseErr  error
}

func (f *fakeIntents) Classify(ctx context.Context, text string) (*ai.Intent, error) {
	return f.intent, f.err
}

func (f *fakeIntents) ParseExpense(ctx context.Context, text string) (map[string]any, error) {
	return f.parseArgs, f.parseErr
}

func newTestServer(t *testing.T, intents ai.Intents) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), time.UTC)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := services.NewExpenseService(repo, nil, time.UTC)
	router := services.NewRouter(intents, svc)
	srv := NewServer(":0", intents, svc, router)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeIntents{})
	rr := doJSON(t, srv, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestIndexServesUI(t *testing.T) {
	srv := newTestServer(t, &fakeIntents{})
	rr := doJSON(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Kharcha") {
		t.Fatal("index body missing heading")
	}
}

func TestCreateExpenseEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeIntents{
		parseArgs: map[string]any{
			"date":        "2025-01-05",
			"amount":      9.99,
			"description": "Test Desc",
			"category":    "testcat",
		},
	})

	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", `{"text": "Dummy input"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["amount"] != 9.99 {
		t.Fatalf("amount = %v", body["amount"])
	}
	if body["category"] != "Testcat" {
		t.Fatalf("category = %v, want title-cased", body["category"])
	}
	if body["description"] != "Test Desc" {
		t.Fatalf("description = %v", body["description"])
	}
	if body["raw_nl"] != "Dummy input" {
		t.Fatalf("raw_nl = %v", body["raw_nl"])
	}
}

func TestCreateExpenseParseFailure(t *testing.T) {
	srv := newTestServer(t, &fakeIntents{
		parseErr: fmt.Errorf("unexpected response from model"),
	})
	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", `{"text": "gibberish"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCreateExpenseRejectsEmptyText(t *testing.T) {
	srv := newTestServer(t, &fakeIntents{})
	for _, body := range []string{`{}`, `{"text": "  "}`, `not json`} {
		rr := doJSON(t, srv, http.MethodPost, "/api/expenses", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestListExpensesEndpoint(t *testing.T) {
	intents := &fakeIntents{
		parseArgs: map[string]any{"amount": 5.0, "description": "A", "category": "x"},
	}
	srv := newTestServer(t, intents)

	if rr := doJSON(t, srv, http.MethodPost, "/api/expenses", `{"text": "A"}`); rr.Code != http.StatusOK {
		t.Fatalf("seed failed: %d", rr.Code)
	}
	intents.parseArgs = map[string]any{"amount": 10.0, "description": "B", "category": "y"}
	if rr := doJSON(t, srv, http.MethodPost, "/api/expenses", `{"text": "B"}`); rr.Code != http.StatusOK {
		t.Fatalf("seed failed: %d", rr.Code)
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/expenses", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(list))
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/expenses?category=y", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0]["description"] != "B" {
		t.Fatalf("unexpected filtered list: %v", list)
	}
}

func TestAskParseExpenseEndToEnd(t *testing.T) {
	srv := newTestServer(t, &fakeIntents{
		intent: &ai.Intent{
			Action: ai.ActionParseExpense,
			Args: map[string]any{
				"date":        "2025-03-03",
				"amount":      7.0,
				"description": "C",
				"category":    "cat",
			},
		},
	})

	rr := doJSON(t, srv, http.MethodPost, "/api/ask", `{"text": "Add expense"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["action"] != ai.ActionParseExpense {
		t.Fatalf("action = %v", body["action"])
	}
	expense := body["expense"].(map[string]any)
	if expense["description"] != "C" || expense["amount"] != 7.0 || expense["category"] != "Cat" {
		t.Fatalf("expense = %v", expense)
	}

	// The stored record is retrievable through the list endpoint.
	rr = doJSON(t, srv, http.MethodGet, "/api/expenses", "")
	var list []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0]["description"] != "C" || list[0]["category"] != "Cat" {
		t.Fatalf("unexpected list: %v", list)
	}
}

func TestAskFreeTextResponse(t *testing.T) {
	srv := newTestServer(t, &fakeIntents{
		intent: &ai.Intent{Content: "Hello!"},
	})
	rr := doJSON(t, srv, http.MethodPost, "/api/ask", `{"text": "hi"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["response"] != "Hello!" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["action"]; ok {
		t.Fatal("free-text responses carry no action")
	}
}

func TestAskRunSQLShape(t *testing.T) {
	intents := &fakeIntents{
		intent: &ai.Intent{
			Action: ai.ActionParseExpense,
			Args:   map[string]any{"amount": 50.0, "description": "X"},
		},
	}
	srv := newTestServer(t, intents)
	for _, amount := range []float64{50, 200, 150} {
		intents.intent.Args["amount"] = amount
		if rr := doJSON(t, srv, http.MethodPost, "/api/ask", `{"text": "seed"}`); rr.Code != http.StatusOK {
			t.Fatalf("seed failed: %d", rr.Code)
		}
	}

	intents.intent = &ai.Intent{
		Action: ai.ActionRunSQL,
		Args: map[string]any{
			"sql": "SELECT amount, description FROM expense ORDER BY amount DESC LIMIT 1 OFFSET 1",
		},
	}
	rr := doJSON(t, srv, http.MethodPost, "/api/ask", `{"text": "2nd most expensive?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	columns := body["columns"].([]any)
	if len(columns) != 2 || columns[0] != "amount" {
		t.Fatalf("columns = %v", columns)
	}
	rows := body["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	if row := rows[0].(map[string]any); row["amount"] != 150.0 {
		t.Fatalf("row = %v", row)
	}
}

func TestAskErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		intents    *fakeIntents
		wantStatus int
	}{
		{
			name:       "provider failure",
			intents:    &fakeIntents{err: fmt.Errorf("connection refused")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "split not found",
			intents: &fakeIntents{intent: &ai.Intent{
				Action: ai.ActionSplitExpense,
				Args:   map[string]any{"expense_id": 42.0},
			}},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "sql policy violation",
			intents: &fakeIntents{intent: &ai.Intent{
				Action: ai.ActionRunSQL,
				Args:   map[string]any{"sql": "DROP TABLE expense"},
			}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown operation",
			intents: &fakeIntents{intent: &ai.Intent{
				Action: "transfer_funds",
				Args:   map[string]any{},
			}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.intents)
			rr := doJSON(t, srv, http.MethodPost, "/api/ask", `{"text": "x"}`)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if body := decodeBody(t, rr); body["detail"] == "" {
				t.Fatal("expected error detail")
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeIntents{})

	rr := doJSON(t, srv, http.MethodDelete, "/api/expenses", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/ask", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
}
