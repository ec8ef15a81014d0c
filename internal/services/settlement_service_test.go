package services

import (
	"context"
	"errors"
	"testing"

	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/ledger/memory"
)

type fakePublisher struct {
	syncIDs     []string
	settlements []int64
	failWith    error
}

func (p *fakePublisher) PublishExpenseSync(_ context.Context, id string) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.syncIDs = append(p.syncIDs, id)
	return nil
}

func (p *fakePublisher) PublishSettlement(_ context.Context, settledCount, _ int64) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.settlements = append(p.settlements, settledCount)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func seedStore(t *testing.T) (*memory.Store, core.User, core.User) {
	t.Helper()
	alice := core.User{ID: "u-alice", Name: "Alice", Email: "alice@example.com", Verified: true}
	bruno := core.User{ID: "u-bruno", Name: "Bruno", Email: "bruno@example.com", Verified: true}
	return memory.Seed(alice, bruno), alice, bruno
}

func TestSettlementService_LiveView(t *testing.T) {
	store, alice, _ := seedStore(t)
	svc := NewSettlementService(store, auth.NewPasskeyGate("sesame"), nil)
	ctx := context.Background()

	if _, err := store.Append(ctx, core.Expense{
		Description: "groceries",
		Amount:      core.Money{Cents: 30000},
		PaidBy:      alice,
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	balances, err := svc.LiveView(ctx)
	if err != nil {
		t.Fatalf("LiveView() error = %v", err)
	}

	if len(balances) != 2 {
		t.Fatalf("LiveView() returned %d balances, want 2", len(balances))
	}
	if balances[0].UserID != alice.ID {
		t.Errorf("top balance = %s, want %s", balances[0].UserID, alice.ID)
	}
	if got := balances[0].Balance.StringFixed(2); got != "150.00" {
		t.Errorf("top balance = %s, want 150.00", got)
	}
	if got := balances[1].SimplifiedBalance.StringFixed(2); got != "-300.00" {
		t.Errorf("bottom simplified = %s, want -300.00", got)
	}
}

func TestSettlementService_Settle(t *testing.T) {
	store, alice, bruno := seedStore(t)
	pub := &fakePublisher{}
	svc := NewSettlementService(store, auth.NewPasskeyGate("sesame"), pub)
	ctx := context.Background()

	for _, e := range []core.Expense{
		{Description: "rent", Amount: core.Money{Cents: 30000}, PaidBy: alice},
		{Description: "utilities", Amount: core.Money{Cents: 10000}, PaidBy: bruno},
	} {
		if _, err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	report, err := svc.Settle(ctx, "sesame")
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	if report.SettledCount != 2 {
		t.Errorf("SettledCount = %d, want 2", report.SettledCount)
	}
	if report.TotalCents != 40000 {
		t.Errorf("TotalCents = %d, want 40000", report.TotalCents)
	}
	if len(report.Balances) != 2 {
		t.Fatalf("report has %d balances, want 2", len(report.Balances))
	}
	if got := report.Balances[0].SimplifiedBalance.StringFixed(2); got != "0.00" {
		t.Errorf("top simplified = %s, want 0.00", got)
	}
	if got := report.Balances[1].SimplifiedBalance.StringFixed(2); got != "-200.00" {
		t.Errorf("bottom simplified = %s, want -200.00", got)
	}
	if len(pub.settlements) != 1 || pub.settlements[0] != 2 {
		t.Errorf("settlement publish = %v, want one message with count 2", pub.settlements)
	}

	// Settling again flips nothing but still reports the full ledger.
	report, err = svc.Settle(ctx, "sesame")
	if err != nil {
		t.Fatalf("second Settle() error = %v", err)
	}
	if report.SettledCount != 0 {
		t.Errorf("second SettledCount = %d, want 0", report.SettledCount)
	}
	if len(report.Balances) != 2 {
		t.Errorf("second report has %d balances, want 2", len(report.Balances))
	}
}

func TestSettlementService_SettleBadPasskey(t *testing.T) {
	store, alice, _ := seedStore(t)
	svc := NewSettlementService(store, auth.NewPasskeyGate("sesame"), nil)
	ctx := context.Background()

	if _, err := store.Append(ctx, core.Expense{
		Description: "dinner",
		Amount:      core.Money{Cents: 5000},
		PaidBy:      alice,
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	_, err := svc.Settle(ctx, "wrong")
	if !errors.Is(err, core.ErrInvalidPasskey) {
		t.Fatalf("Settle() error = %v, want ErrInvalidPasskey", err)
	}

	// The ledger must be untouched after a failed verification.
	balances, err := svc.LiveView(ctx)
	if err != nil {
		t.Fatalf("LiveView() error = %v", err)
	}
	if got := balances[0].Paid.Cents; got != 5000 {
		t.Errorf("paid after failed settle = %d, want 5000", got)
	}
}

func TestSettlementService_SettleEmptyLedger(t *testing.T) {
	store, _, _ := seedStore(t)
	svc := NewSettlementService(store, auth.NewPasskeyGate("sesame"), nil)

	report, err := svc.Settle(context.Background(), "sesame")
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if report.SettledCount != 0 || len(report.Balances) != 0 {
		t.Errorf("empty ledger report = %+v, want empty", report)
	}
}

func TestSettlementService_PublishFailureDoesNotFailSettle(t *testing.T) {
	store, alice, _ := seedStore(t)
	pub := &fakePublisher{failWith: errors.New("broker down")}
	svc := NewSettlementService(store, auth.NewPasskeyGate("sesame"), pub)
	ctx := context.Background()

	if _, err := store.Append(ctx, core.Expense{
		Description: "cinema",
		Amount:      core.Money{Cents: 2400},
		PaidBy:      alice,
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	report, err := svc.Settle(ctx, "sesame")
	if err != nil {
		t.Fatalf("Settle() error = %v, publish failures must not fail the settlement", err)
	}
	if report.SettledCount != 1 {
		t.Errorf("SettledCount = %d, want 1", report.SettledCount)
	}
}
