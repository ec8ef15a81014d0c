package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "saldo-test.db")
	repo, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreateUser(t *testing.T, repo *SQLiteRepository, name string, verified bool) core.User {
	t.Helper()
	u := core.User{Name: name, Email: name + "@example.com", Verified: verified}
	id, err := repo.CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", name, err)
	}
	u.ID = id
	return u
}

func mustAppend(t *testing.T, repo *SQLiteRepository, payer core.User, cents int64, desc string) string {
	t.Helper()
	id, err := repo.Append(context.Background(), core.Expense{
		Description: desc,
		Amount:      core.Money{Cents: cents},
		PaidBy:      payer,
	})
	if err != nil {
		t.Fatalf("Append(%s) failed: %v", desc, err)
	}
	return id
}

func TestSQLiteRepositoryUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreateUser(t, repo, "anna", true)
	mustCreateUser(t, repo, "bruno", false)

	all, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 users, got %d", len(all))
	}

	verified, err := repo.ListVerifiedUsers(ctx)
	if err != nil {
		t.Fatalf("ListVerifiedUsers failed: %v", err)
	}
	if len(verified) != 1 || verified[0].Name != "anna" {
		t.Fatalf("expected only anna verified, got %+v", verified)
	}
}

func TestSQLiteRepositoryExpenseLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	anna := mustCreateUser(t, repo, "anna", true)

	id := mustAppend(t, repo, anna, 1250, "groceries")

	e, err := repo.GetExpense(ctx, id)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if e.Description != "groceries" || e.Amount.Cents != 1250 {
		t.Fatalf("unexpected expense: %+v", e)
	}
	if e.PaidBy.ID != anna.ID || e.PaidBy.Email != anna.Email {
		t.Fatalf("payer not resolved: %+v", e.PaidBy)
	}
	if e.Settled {
		t.Fatal("new expense must start unsettled")
	}
	if e.Date.IsZero() || e.CreatedAt.IsZero() {
		t.Fatal("date and created_at must default to creation time")
	}

	e.Description = "weekly groceries"
	e.Amount.Cents = 1300
	if err := repo.UpdateExpense(ctx, e); err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	updated, err := repo.GetExpense(ctx, id)
	if err != nil {
		t.Fatalf("GetExpense after update failed: %v", err)
	}
	if updated.Description != "weekly groceries" || updated.Amount.Cents != 1300 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := repo.DeleteExpense(ctx, id); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	if _, err := repo.GetExpense(ctx, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteExpense(ctx, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestSQLiteRepositoryListFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	anna := mustCreateUser(t, repo, "anna", true)
	bruno := mustCreateUser(t, repo, "bruno", true)

	mustAppend(t, repo, anna, 30000, "rent")
	mustAppend(t, repo, bruno, 10000, "groceries")

	if _, _, err := repo.Settle(ctx); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	mustAppend(t, repo, anna, 500, "coffee")

	unsettled, err := repo.ListExpenses(ctx, ledger.Unsettled())
	if err != nil {
		t.Fatalf("ListExpenses(unsettled) failed: %v", err)
	}
	if len(unsettled) != 1 || unsettled[0].Description != "coffee" {
		t.Fatalf("expected only coffee unsettled, got %+v", unsettled)
	}

	all, err := repo.ListExpenses(ctx, ledger.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses(all) failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 expenses, got %d", len(all))
	}

	byPayer, err := repo.ListExpenses(ctx, ledger.ExpenseFilter{PaidBy: bruno.ID})
	if err != nil {
		t.Fatalf("ListExpenses(paid_by) failed: %v", err)
	}
	if len(byPayer) != 1 || byPayer[0].Description != "groceries" {
		t.Fatalf("expected only bruno's groceries, got %+v", byPayer)
	}
}

func TestSQLiteRepositorySettle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	anna := mustCreateUser(t, repo, "anna", true)
	bruno := mustCreateUser(t, repo, "bruno", true)

	mustAppend(t, repo, anna, 30000, "rent")
	mustAppend(t, repo, bruno, 10000, "groceries")

	snapshot, flipped, err := repo.Settle(ctx)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("expected snapshot of 2, got %d", len(snapshot))
	}
	if flipped != 2 {
		t.Fatalf("expected 2 flipped, got %d", flipped)
	}

	// Idempotent: a second run settles nothing new but still snapshots all.
	snapshot, flipped, err = repo.Settle(ctx)
	if err != nil {
		t.Fatalf("second Settle failed: %v", err)
	}
	if len(snapshot) != 2 || flipped != 0 {
		t.Fatalf("second settle: snapshot=%d flipped=%d, want 2/0", len(snapshot), flipped)
	}
	for _, e := range snapshot {
		if !e.Settled {
			t.Fatalf("expense %s still unsettled after settle", e.ID)
		}
	}

	snapshot, flipped, err = repo.Settle(ctx)
	if err != nil {
		t.Fatalf("empty-delta Settle failed: %v", err)
	}
	if flipped != 0 {
		t.Fatalf("expected no further flips, got %d", flipped)
	}
}

func TestSQLiteRepositorySettleEmptyLedger(t *testing.T) {
	repo := newTestRepo(t)
	snapshot, flipped, err := repo.Settle(context.Background())
	if err != nil {
		t.Fatalf("Settle on empty ledger failed: %v", err)
	}
	if len(snapshot) != 0 || flipped != 0 {
		t.Fatalf("expected empty snapshot and zero flips, got %d/%d", len(snapshot), flipped)
	}
}
