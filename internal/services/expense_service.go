// Package services orchestrates the ledger store, the auth gate and the
// AMQP publisher behind the HTTP handlers.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
)

// Publisher is the slice of the AMQP client the services need. Publishing is
// always best effort: a broker outage never fails a request.
type Publisher interface {
	PublishExpenseSync(ctx context.Context, id string) error
	PublishSettlement(ctx context.Context, settledCount, totalCents int64) error
	Close() error
}

// ExpenseService orchestrates expense operations across the store and AMQP
type ExpenseService struct {
	store     ledger.Store
	publisher Publisher
}

func NewExpenseService(store ledger.Store, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
	}
}

// CreateExpense saves an expense and publishes a sync message
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (string, error) {
	id, err := s.store.Append(ctx, e)
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldExpenseID, id,
		applog.FieldAmountCents, e.Amount.Cents)

	s.publishSync(ctx, id)
	return id, nil
}

// GetExpense returns a single expense by ID
func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// ListExpenses returns expenses matching the filter
func (s *ExpenseService) ListExpenses(ctx context.Context, f ledger.ExpenseFilter) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, f)
}

// UpdateExpense updates an existing expense and publishes a sync message.
// The settled flag is not touched, only a settlement flips it.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldExpenseID, e.ID)

	s.publishSync(ctx, e.ID)
	return nil
}

// DeleteExpense removes an expense
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id)
	return nil
}

func (s *ExpenseService) publishSync(ctx context.Context, id string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping sync message")
		return
	}
	if err := s.publisher.PublishExpenseSync(ctx, id); err != nil {
		// Don't fail the request, the expense is saved locally.
		slog.ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldOperation, applog.OpSync,
			applog.FieldExpenseID, id,
			"error", err)
	}
}

// Close closes the publisher connection
func (s *ExpenseService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
