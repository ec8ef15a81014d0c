// Package ledger defines the ports the balance engine and API layer consume.
// Backends (sqlite, postgres, memory) implement them behind internal/backend.
package ledger

import (
	"context"
	"errors"

	"saldo/internal/core"
)

// ErrNotFound is returned for lookups of unknown users or expenses.
var ErrNotFound = errors.New("not found")

// ExpenseFilter narrows ListExpenses. A nil Settled means both settled and
// unsettled expenses.
type ExpenseFilter struct {
	Settled *bool
	PaidBy  string
}

// Unsettled is a convenience filter for the live balance view.
func Unsettled() ExpenseFilter {
	settled := false
	return ExpenseFilter{Settled: &settled}
}

// Ports for outbound adapters.
type (
	UserDirectory interface {
		// ListVerifiedUsers returns the users eligible for balance views.
		ListVerifiedUsers(ctx context.Context) ([]core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
		CreateUser(ctx context.Context, u core.User) (id string, err error)
	}

	ExpenseReader interface {
		// ListExpenses returns expenses matching the filter, payer resolved,
		// newest first.
		ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
	}

	ExpenseWriter interface {
		// Append stores a new expense and returns the assigned ID.
		Append(ctx context.Context, e core.Expense) (id string, err error)
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id string) error
	}

	// Settler performs the one-way settlement transition. Settle must take a
	// snapshot of the FULL ledger and flip every unsettled expense to settled
	// within a single transaction, returning the snapshot the flip acted on
	// and the number of rows actually flipped. The flip is conditional
	// (unsettled rows only), so concurrent calls cannot double-settle.
	Settler interface {
		Settle(ctx context.Context) (snapshot []core.Expense, flipped int64, err error)
	}
)

// Store bundles everything a full backend provides.
type Store interface {
	UserDirectory
	ExpenseReader
	ExpenseWriter
	Settler
}
