package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/ledger/memory"
	"saldo/internal/services"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.Seed(
		core.User{ID: "u-alice", Name: "Alice", Email: "alice@example.com", Verified: true},
		core.User{ID: "u-bruno", Name: "Bruno", Email: "bruno@example.com", Verified: true},
		core.User{ID: "u-carla", Name: "Carla", Email: "carla@example.com", Verified: true},
	)
	expenses := services.NewExpenseService(store, nil)
	settlements := services.NewSettlementService(store, auth.NewPasskeyGate("sesame"), nil)
	return NewServer("127.0.0.1:0", expenses, settlements, store), store
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := doRequest(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", rec.Code)
	}
}

func TestCreateAndGetExpense(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/expenses",
		`{"description":"groceries","amount":"45,50","paid_by":"u-alice","date":"2026-08-30"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/expenses = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	created := decodeBody[expenseDTO](t, rec)
	if created.Amount != "45.50" || created.AmountCents != 4550 {
		t.Errorf("created amount = %s (%d cents), want 45.50 (4550)", created.Amount, created.AmountCents)
	}
	if created.PaidBy.Name != "Alice" {
		t.Errorf("payer = %s, want Alice", created.PaidBy.Name)
	}
	if created.Settled {
		t.Error("new expense must not be settled")
	}
	if created.Date != "2026-08-30" {
		t.Errorf("date = %s, want 2026-08-30", created.Date)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/expenses/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/expenses/{id} = %d, want 200", rec.Code)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid amount", `{"description":"x","amount":"abc","paid_by":"u-alice"}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"description":"x","amount":"0","paid_by":"u-alice"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"description":"x","amount":"-5","paid_by":"u-alice"}`, http.StatusUnprocessableEntity},
		{"empty description", `{"description":"","amount":"10","paid_by":"u-alice"}`, http.StatusUnprocessableEntity},
		{"missing payer", `{"description":"x","amount":"10"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"description":"x","amount":"10","paid_by":"u-alice","date":"30/08/2026"}`, http.StatusUnprocessableEntity},
		{"unknown payer", `{"description":"x","amount":"10","paid_by":"u-nobody"}`, http.StatusNotFound},
		{"malformed JSON", `{"description":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/expenses", tt.body)
			if rec.Code != tt.want {
				t.Errorf("POST /api/expenses = %d, want %d (body: %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetExpenseNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := doRequest(t, s, http.MethodGet, "/api/expenses/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET unknown expense = %d, want 404", rec.Code)
	}
}

func TestLiveBalances(t *testing.T) {
	s, _ := newTestServer(t)

	// Alice 300, Bruno 100, Carla 0. Share 133.33.
	for _, body := range []string{
		`{"description":"rent","amount":"300","paid_by":"u-alice"}`,
		`{"description":"groceries","amount":"100","paid_by":"u-bruno"}`,
	} {
		if rec := doRequest(t, s, http.MethodPost, "/api/expenses", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed expense = %d, want 201", rec.Code)
		}
	}

	rec := doRequest(t, s, http.MethodGet, "/api/balances", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/balances = %d, want 200", rec.Code)
	}

	balances := decodeBody[[]balanceDTO](t, rec)
	if len(balances) != 3 {
		t.Fatalf("balances = %d entries, want 3", len(balances))
	}

	top := balances[0]
	if top.Name != "Alice" || top.Paid != "300.00" {
		t.Errorf("top = %s paid %s, want Alice 300.00", top.Name, top.Paid)
	}
	if top.Share != "133.33" || top.Balance != "166.67" || top.SimplifiedBalance != "0.00" {
		t.Errorf("top figures = share %s balance %s simplified %s", top.Share, top.Balance, top.SimplifiedBalance)
	}
	if balances[2].SimplifiedBalance != "-300.00" {
		t.Errorf("bottom simplified = %s, want -300.00", balances[2].SimplifiedBalance)
	}
	if len(top.Expenses) != 0 {
		t.Error("live view must not carry line items")
	}
}

func TestSettlement(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []string{
		`{"description":"rent","amount":"300","paid_by":"u-alice"}`,
		`{"description":"utilities","amount":"100","paid_by":"u-bruno"}`,
	} {
		if rec := doRequest(t, s, http.MethodPost, "/api/expenses", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed expense = %d, want 201", rec.Code)
		}
	}

	t.Run("wrong passkey leaves ledger untouched", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/api/settlements", `{"passkey":"wrong"}`)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("POST /api/settlements = %d, want 403", rec.Code)
		}

		rec = doRequest(t, s, http.MethodGet, "/api/expenses?settled=false", "")
		expenses := decodeBody[[]expenseDTO](t, rec)
		if len(expenses) != 2 {
			t.Errorf("unsettled after failed settle = %d, want 2", len(expenses))
		}
	})

	t.Run("correct passkey settles everything", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/api/settlements", `{"passkey":"sesame"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST /api/settlements = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
		}

		resp := decodeBody[settlementResponse](t, rec)
		if resp.SettledCount != 2 {
			t.Errorf("settled_count = %d, want 2", resp.SettledCount)
		}
		if resp.Total != "400.00" {
			t.Errorf("total = %s, want 400.00", resp.Total)
		}
		// Two distinct payers, share 200 each, anchored on the top balance.
		if len(resp.Balances) != 2 {
			t.Fatalf("balances = %d, want 2", len(resp.Balances))
		}
		if resp.Balances[0].SimplifiedBalance != "0.00" {
			t.Errorf("top simplified = %s, want 0.00", resp.Balances[0].SimplifiedBalance)
		}
		if len(resp.Balances[0].Expenses) == 0 {
			t.Error("settlement report entries must carry line items")
		}

		rec = doRequest(t, s, http.MethodGet, "/api/expenses?settled=false", "")
		expenses := decodeBody[[]expenseDTO](t, rec)
		if len(expenses) != 0 {
			t.Errorf("unsettled after settle = %d, want 0", len(expenses))
		}
	})

	t.Run("second settlement flips nothing", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/api/settlements", `{"passkey":"sesame"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST /api/settlements = %d, want 200", rec.Code)
		}
		resp := decodeBody[settlementResponse](t, rec)
		if resp.SettledCount != 0 {
			t.Errorf("settled_count = %d, want 0", resp.SettledCount)
		}
	})
}

func TestUsers(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/users",
		`{"name":"Dora","email":"dora@example.com","verified":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/users = %d, want 201", rec.Code)
	}
	created := decodeBody[userDTO](t, rec)
	if created.ID == "" {
		t.Error("created user has empty ID")
	}

	rec = doRequest(t, s, http.MethodPost, "/api/users", `{"name":"","email":"x@example.com"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("POST invalid user = %d, want 422", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/users?verified=true", "")
	users := decodeBody[[]userDTO](t, rec)
	if len(users) != 4 {
		t.Errorf("verified users = %d, want 4", len(users))
	}
}

func TestUpdateExpenseKeepsSettledFlag(t *testing.T) {
	s, store := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/expenses",
		`{"description":"dinner","amount":"60","paid_by":"u-alice"}`)
	created := decodeBody[expenseDTO](t, rec)

	if _, _, err := store.Settle(context.Background()); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	rec = doRequest(t, s, http.MethodPut, "/api/expenses/"+created.ID,
		`{"description":"dinner out","amount":"65","paid_by":"u-alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/expenses/{id} = %d, want 200", rec.Code)
	}

	updated := decodeBody[expenseDTO](t, rec)
	if !updated.Settled {
		t.Error("update must not revert the settled flag")
	}
	if updated.Description != "dinner out" {
		t.Errorf("description = %s, want dinner out", updated.Description)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/expenses", "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
