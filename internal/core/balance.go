package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RankKey selects which figure anchors the simplified balance of a view.
// The live view ranks by paid, the settlement view by balance. The asymmetry
// is intentional and kept explicit here instead of being unified.
type RankKey int

const (
	RankByPaid RankKey = iota
	RankByBalance
)

type (
	// LineItem is one expense attributed to a payer in a settlement report.
	LineItem struct {
		Description string
		Amount      Money
	}

	// Balance is the computed position of one participant. It is ephemeral:
	// recomputed from the stored ledger on every request, never persisted.
	Balance struct {
		UserID string
		Name   string
		Email  string
		// Paid is the sum of this user's expense amounts within the scope.
		Paid Money
		// Share is the per-person share the balance is measured against.
		Share decimal.Decimal
		// Balance is Paid - Share; positive means net creditor.
		Balance decimal.Decimal
		// SimplifiedBalance re-expresses the figure relative to the top
		// entry under the view's RankKey, so the top entry is always 0 and
		// everyone else is <= 0.
		SimplifiedBalance decimal.Decimal
		// Expenses lists the payer's line items (settlement view only).
		Expenses []LineItem
	}
)

// LiveBalances computes the live balance view: one Balance per verified user
// over the unsettled expenses, sorted by paid descending (stable in the
// order users were supplied).
//
// The share is the mean of paid across all verified users, including users
// who paid nothing. An expense whose payer is not among the supplied users is
// an integrity error and aborts the computation with ErrUnknownPayer.
func LiveBalances(users []User, unsettled []Expense) ([]Balance, error) {
	balances := make([]Balance, 0, len(users))
	index := make(map[string]int, len(users))
	for _, u := range users {
		index[u.ID] = len(balances)
		balances = append(balances, Balance{
			UserID: u.ID,
			Name:   u.Name,
			Email:  u.Email,
		})
	}

	var total int64
	for _, e := range unsettled {
		i, ok := index[e.PaidBy.ID]
		if !ok {
			return nil, ErrUnknownPayer
		}
		balances[i].Paid.Cents += e.Amount.Cents
		total += e.Amount.Cents
	}

	share := perPersonShare(total, len(balances))
	for i := range balances {
		balances[i].Share = share
		balances[i].Balance = balances[i].Paid.Decimal().Sub(share)
	}

	sort.SliceStable(balances, func(i, j int) bool {
		return balances[i].Paid.Cents > balances[j].Paid.Cents
	})
	simplifyAgainstTop(balances, RankByPaid)
	return balances, nil
}

// SettlementBalances computes the final balance per distinct payer over the
// full ledger, settled and unsettled alike. Payers are taken from the ledger
// itself in order of first appearance; an empty ledger yields an empty
// result. Each entry carries the payer's line items.
//
// The anchor for simplified balances is the highest balance, not the highest
// paid as in the live view. With a uniform share the two coincide, but the
// distinction is preserved deliberately.
func SettlementBalances(ledger []Expense) []Balance {
	if len(ledger) == 0 {
		return nil
	}

	balances := make([]Balance, 0)
	index := make(map[string]int)
	var total int64
	for _, e := range ledger {
		i, ok := index[e.PaidBy.ID]
		if !ok {
			i = len(balances)
			index[e.PaidBy.ID] = i
			balances = append(balances, Balance{
				UserID: e.PaidBy.ID,
				Name:   e.PaidBy.Name,
				Email:  e.PaidBy.Email,
			})
		}
		balances[i].Paid.Cents += e.Amount.Cents
		balances[i].Expenses = append(balances[i].Expenses, LineItem{
			Description: e.Description,
			Amount:      e.Amount,
		})
		total += e.Amount.Cents
	}

	share := perPersonShare(total, len(balances))
	for i := range balances {
		balances[i].Share = share
		balances[i].Balance = balances[i].Paid.Decimal().Sub(share)
	}

	simplifyAgainstTop(balances, RankByBalance)
	return balances
}

// perPersonShare divides total cents evenly across n participants, rounding
// half-up to whole cents. A zero participant count yields zero, never a
// division by zero.
func perPersonShare(totalCents int64, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return decimal.New(totalCents, -2).Div(decimal.NewFromInt(int64(n))).Round(2)
}

// simplifyAgainstTop sets SimplifiedBalance on every entry relative to the
// maximal entry under the given key. The top entry ends up at exactly zero.
func simplifyAgainstTop(balances []Balance, key RankKey) {
	if len(balances) == 0 {
		return
	}
	switch key {
	case RankByPaid:
		top := balances[0].Paid
		for i := range balances {
			if balances[i].Paid.Cents > top.Cents {
				top = balances[i].Paid
			}
		}
		for i := range balances {
			balances[i].SimplifiedBalance = balances[i].Paid.Decimal().Sub(top.Decimal())
		}
	case RankByBalance:
		top := balances[0].Balance
		for i := range balances {
			if balances[i].Balance.GreaterThan(top) {
				top = balances[i].Balance
			}
		}
		for i := range balances {
			balances[i].SimplifiedBalance = balances[i].Balance.Sub(top)
		}
	}
}
