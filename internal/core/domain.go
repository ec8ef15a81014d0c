package core

import (
	"errors"
	"strings"
	"time"
)

type (
	Money struct {
		Cents int64
	}

	// User is a participant in the shared ledger. Only verified users take
	// part in balance views.
	User struct {
		ID       string
		Name     string
		Email    string
		Verified bool
	}

	// Expense is a single payment recorded in the ledger. PaidBy is always
	// resolved to a full User when an expense is read back from storage.
	Expense struct {
		ID          string
		Description string
		Amount      Money
		PaidBy      User
		Date        time.Time
		Image       string // opaque reference to an externally stored receipt
		Settled     bool
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrMissingPayer     = errors.New("missing payer")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyEmail       = errors.New("empty email")

	// ErrInvalidPasskey is the authorization failure of the settlement
	// transition. Callers must be able to tell it apart from operational
	// failures, so it is a sentinel here rather than a wrapped storage error.
	ErrInvalidPasskey = errors.New("invalid passkey")

	// ErrUnknownPayer reports an unsettled expense whose payer is not part of
	// the verified user set. The ledger aggregator surfaces it instead of
	// silently dropping the expense.
	ErrUnknownPayer = errors.New("expense payer not in verified user set")
)

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.PaidBy.ID == "" {
		return ErrMissingPayer
	}
	return nil
}
