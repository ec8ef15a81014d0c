package services

import (
	"context"
	"fmt"
	"log/slog"

	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/ledger"
	applog "saldo/internal/log"
)

// SettlementReport is the result of a completed settlement transition.
type SettlementReport struct {
	Balances     []core.Balance
	SettledCount int64
	TotalCents   int64
}

// SettlementService computes balance views and runs the settlement
// transition. Balances are never stored, every call recomputes them from the
// ledger.
type SettlementService struct {
	store     ledger.Store
	gate      auth.Gate
	publisher Publisher
}

func NewSettlementService(store ledger.Store, gate auth.Gate, publisher Publisher) *SettlementService {
	return &SettlementService{
		store:     store,
		gate:      gate,
		publisher: publisher,
	}
}

// LiveView computes the current balance per verified user over the unsettled
// expenses.
func (s *SettlementService) LiveView(ctx context.Context) ([]core.Balance, error) {
	users, err := s.store.ListVerifiedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list verified users: %w", err)
	}

	expenses, err := s.store.ListExpenses(ctx, ledger.Unsettled())
	if err != nil {
		return nil, fmt.Errorf("list unsettled expenses: %w", err)
	}

	return core.LiveBalances(users, expenses)
}

// Settle verifies the passkey, flips every unsettled expense to settled and
// returns the final report computed from the exact ledger snapshot the flip
// acted on. A failed verification leaves the ledger untouched.
func (s *SettlementService) Settle(ctx context.Context, passkey string) (SettlementReport, error) {
	if err := s.gate.Verify(passkey); err != nil {
		return SettlementReport{}, err
	}

	snapshot, flipped, err := s.store.Settle(ctx)
	if err != nil {
		return SettlementReport{}, fmt.Errorf("settle ledger: %w", err)
	}

	var total int64
	for _, e := range snapshot {
		total += e.Amount.Cents
	}

	report := SettlementReport{
		Balances:     core.SettlementBalances(snapshot),
		SettledCount: flipped,
		TotalCents:   total,
	}

	s.publishSettlement(ctx, report)

	slog.InfoContext(ctx, "Settlement recorded",
		applog.FieldOperation, applog.OpSettle,
		applog.FieldSettledCount, report.SettledCount,
		"total_cents", report.TotalCents,
		"payers", len(report.Balances))

	return report, nil
}

func (s *SettlementService) publishSettlement(ctx context.Context, report SettlementReport) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping settlement message")
		return
	}
	if err := s.publisher.PublishSettlement(ctx, report.SettledCount, report.TotalCents); err != nil {
		// The settlement is committed, the message is only a notification.
		slog.ErrorContext(ctx, "Failed to publish settlement message", "error", err)
	}
}
