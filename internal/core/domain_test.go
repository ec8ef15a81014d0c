package core

import "testing"

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -100}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestUserValidate(t *testing.T) {
	good := User{Name: "Anna", Email: "anna@example.com"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []User{
		{Name: "", Email: "a@b.c"},
		{Name: "  ", Email: "a@b.c"},
		{Name: "Anna", Email: ""},
	}
	for i, u := range bads {
		if err := u.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	payer := User{ID: "u1", Name: "Anna", Email: "anna@example.com"}
	good := Expense{
		Description: "groceries",
		Amount:      Money{Cents: 1250},
		PaidBy:      payer,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}

	bads := []Expense{
		{Description: "", Amount: Money{Cents: 1}, PaidBy: payer},
		{Description: "a", Amount: Money{Cents: 0}, PaidBy: payer},
		{Description: "a", Amount: Money{Cents: 1}},
		{Description: string(long), Amount: Money{Cents: 1}, PaidBy: payer},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
