package http

import (
	"log/slog"
	"net/http"
	"time"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

type expenseRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	PaidBy      string `json:"paid_by"`
	Date        string `json:"date,omitempty"`
	Image       string `json:"image,omitempty"`
}

type userDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

type expenseDTO struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	AmountCents int64     `json:"amount_cents"`
	PaidBy      userDTO   `json:"paid_by"`
	Date        string    `json:"date"`
	Image       string    `json:"image,omitempty"`
	Settled     bool      `json:"is_settled"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserDTO(u core.User) userDTO {
	return userDTO{ID: u.ID, Name: u.Name, Email: u.Email, Verified: u.Verified}
}

func toExpenseDTO(e core.Expense) expenseDTO {
	return expenseDTO{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount.Decimal().StringFixed(2),
		AmountCents: e.Amount.Cents,
		PaidBy:      toUserDTO(e.PaidBy),
		Date:        e.Date.Format("2006-01-02"),
		Image:       e.Image,
		Settled:     e.Settled,
		CreatedAt:   e.CreatedAt,
	}
}

// expenseFromRequest builds a core.Expense from the request body, parsing the
// decimal amount and optional date.
func expenseFromRequest(w http.ResponseWriter, r *http.Request, req expenseRequest) (core.Expense, bool) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return core.Expense{}, false
	}

	e := core.Expense{
		Description: sanitizeInput(req.Description),
		Amount:      core.Money{Cents: cents},
		PaidBy:      core.User{ID: req.PaidBy},
		Image:       sanitizeInput(req.Image),
	}

	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
			return core.Expense{}, false
		}
		e.Date = date
	}

	if err := e.Validate(); err != nil {
		writeDomainError(w, r, err)
		return core.Expense{}, false
	}

	return e, true
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter := ledger.ExpenseFilter{
		PaidBy: r.URL.Query().Get("paid_by"),
	}
	switch r.URL.Query().Get("settled") {
	case "true":
		settled := true
		filter.Settled = &settled
	case "false":
		settled := false
		filter.Settled = &settled
	}

	expenses, err := s.expenses.ListExpenses(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]expenseDTO, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, ok := expenseFromRequest(w, r, req)
	if !ok {
		return
	}

	id, err := s.expenses.CreateExpense(r.Context(), e)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Expense created",
		"expense_id", id,
		"amount_cents", e.Amount.Cents,
		"user_id", e.PaidBy.ID)

	created, err := s.expenses.GetExpense(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(created))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenses.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, ok := expenseFromRequest(w, r, req)
	if !ok {
		return
	}
	e.ID = r.PathValue("id")

	if err := s.expenses.UpdateExpense(r.Context(), e); err != nil {
		writeDomainError(w, r, err)
		return
	}

	updated, err := s.expenses.GetExpense(r.Context(), e.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.expenses.DeleteExpense(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Expense deleted", "expense_id", id)
	w.WriteHeader(http.StatusNoContent)
}
