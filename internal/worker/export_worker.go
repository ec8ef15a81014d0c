// Package worker exports ledger data to the configured spreadsheet in
// response to AMQP messages, with a periodic catch-up pass for anything the
// broker dropped.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
)

// Exporter is the slice of the sheets client the worker needs.
type Exporter interface {
	AppendExpenseRow(ctx context.Context, e core.Expense) (string, error)
	AppendSettlementReport(ctx context.Context, recordedAt time.Time, balances []core.Balance) error
}

// ExportWorker consumes sync messages and mirrors the ledger to the export
// sheet.
type ExportWorker struct {
	store     ledger.ExpenseReader
	exporter  Exporter
	batchSize int

	mu       sync.Mutex
	lastSync time.Time
}

func NewExportWorker(store ledger.ExpenseReader, exporter Exporter, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		batchSize: batchSize,
		lastSync:  time.Now(),
	}
}

// HandleSyncMessage exports a single expense referenced by an AMQP message
func (w *ExportWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ExpenseSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		applog.FieldOperation, applog.OpSync,
		applog.FieldExpenseID, msg.ID)

	expense, err := w.store.GetExpense(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	ref, err := w.exporter.AppendExpenseRow(ctx, expense)
	if err != nil {
		return fmt.Errorf("export expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldExpenseID, msg.ID,
		"sheets_ref", ref)
	return nil
}

// HandleSettlementMessage appends a settlement report computed over the full
// ledger, which at this point is entirely settled.
func (w *ExportWorker) HandleSettlementMessage(ctx context.Context, msg *amqp.SettlementMessage) error {
	slog.InfoContext(ctx, "Processing settlement message",
		"settled_count", msg.SettledCount,
		"total_cents", msg.TotalCents)

	expenses, err := w.store.ListExpenses(ctx, ledger.ExpenseFilter{})
	if err != nil {
		return fmt.Errorf("list ledger: %w", err)
	}

	balances := core.SettlementBalances(expenses)
	if err := w.exporter.AppendSettlementReport(ctx, msg.RecordedAt, balances); err != nil {
		return fmt.Errorf("export settlement report: %w", err)
	}

	return nil
}

// ProcessRecentExpenses exports expenses created since the previous pass, up
// to the batch size. It backs the periodic catch-up for messages the broker
// lost.
func (w *ExportWorker) ProcessRecentExpenses(ctx context.Context) error {
	w.mu.Lock()
	since := w.lastSync
	w.mu.Unlock()

	expenses, err := w.store.ListExpenses(ctx, ledger.ExpenseFilter{})
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}

	var exported int
	var newest time.Time
	for i := len(expenses) - 1; i >= 0; i-- { // oldest first
		e := expenses[i]
		if !e.CreatedAt.After(since) {
			continue
		}
		if exported >= w.batchSize {
			break
		}
		if _, err := w.exporter.AppendExpenseRow(ctx, e); err != nil {
			return fmt.Errorf("export expense %s: %w", e.ID, err)
		}
		exported++
		if e.CreatedAt.After(newest) {
			newest = e.CreatedAt
		}
	}

	if exported > 0 {
		w.mu.Lock()
		if newest.After(w.lastSync) {
			w.lastSync = newest
		}
		w.mu.Unlock()
		slog.InfoContext(ctx, "Catch-up export completed",
			applog.FieldOperation, applog.OpExport,
			"exported", exported)
	}

	return nil
}
