// Package memory provides an in-process ledger.Store used for development
// and as the collaborator double in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu       sync.Mutex
	users    []core.User
	expenses []core.Expense
}

func New() *Store {
	return &Store{}
}

// Seed installs users without validation, for tests and local bootstrapping.
func Seed(users ...core.User) *Store {
	s := New()
	s.users = append(s.users, users...)
	return s
}

func (s *Store) CreateUser(_ context.Context, u core.User) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	s.users = append(s.users, u)
	return u.ID, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.User(nil), s.users...), nil
}

func (s *Store) ListVerifiedUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Verified {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	payer, ok := s.findUser(e.PaidBy.ID)
	if !ok {
		return "", ledger.ErrNotFound
	}
	e.PaidBy = payer
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.Date.IsZero() {
		e.Date = e.CreatedAt
	}
	e.Settled = false
	s.expenses = append(s.expenses, e)
	return e.ID, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, ledger.ErrNotFound
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	payer, ok := s.findUser(e.PaidBy.ID)
	if !ok {
		return ledger.ErrNotFound
	}
	for i := range s.expenses {
		if s.expenses[i].ID == e.ID {
			// Settled is monotonic; an update never reverts it.
			e.Settled = s.expenses[i].Settled
			e.CreatedAt = s.expenses[i].CreatedAt
			e.PaidBy = payer
			if e.Date.IsZero() {
				e.Date = s.expenses[i].Date
			}
			s.expenses[i] = e
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.expenses {
		if s.expenses[i].ID == id {
			s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) ListExpenses(_ context.Context, f ledger.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if f.Settled != nil && e.Settled != *f.Settled {
			continue
		}
		if f.PaidBy != "" && e.PaidBy.ID != f.PaidBy {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Settle snapshots the full ledger and flips unsettled expenses to settled
// under one lock, mirroring the single-transaction guarantee of the SQL
// backends.
func (s *Store) Settle(_ context.Context) ([]core.Expense, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := append([]core.Expense(nil), s.expenses...)
	var flipped int64
	for i := range s.expenses {
		if !s.expenses[i].Settled {
			s.expenses[i].Settled = true
			flipped++
		}
	}
	return snapshot, flipped, nil
}

func (s *Store) findUser(id string) (core.User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return core.User{}, false
}
