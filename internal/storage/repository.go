// Package storage provides the SQLite-backed ledger.Store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, verified, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, boolToInt(u.Verified), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User saved to SQLite",
		"id", u.ID,
		"name", u.Name,
		"verified", u.Verified)

	return u.ID, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	return r.listUsers(ctx, `SELECT id, name, email, verified FROM users ORDER BY name`)
}

func (r *SQLiteRepository) ListVerifiedUsers(ctx context.Context) ([]core.User, error) {
	return r.listUsers(ctx, `SELECT id, name, email, verified FROM users WHERE verified = 1 ORDER BY name`)
}

func (r *SQLiteRepository) listUsers(ctx context.Context, query string) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		var verified int
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &verified); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Verified = verified != 0
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.Date.IsZero() {
		e.Date = e.CreatedAt
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount_cents, paid_by, date, image, is_settled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		e.ID, e.Description, e.Amount.Cents, e.PaidBy.ID, e.Date, e.Image, e.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"paid_by", e.PaidBy.ID)

	return e.ID, nil
}

const expenseColumns = `e.id, e.description, e.amount_cents, e.date, e.image, e.is_settled, e.created_at,
	u.id, u.name, u.email, u.verified`

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses e JOIN users u ON u.id = e.paid_by WHERE e.id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ledger.ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses e JOIN users u ON u.id = e.paid_by`
	var (
		where []string
		args  []any
	)
	if f.Settled != nil {
		where = append(where, `e.is_settled = ?`)
		args = append(args, boolToInt(*f.Settled))
	}
	if f.PaidBy != "" {
		where = append(where, `e.paid_by = ?`)
		args = append(args, f.PaidBy)
	}
	for i, w := range where {
		if i == 0 {
			query += ` WHERE ` + w
		} else {
			query += ` AND ` + w
		}
	}
	query += ` ORDER BY e.created_at DESC, e.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	// is_settled is deliberately not touched: the flag only moves through
	// Settle, never through an edit.
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount_cents = ?, paid_by = ?, date = ?, image = ? WHERE id = ?`,
		e.Description, e.Amount.Cents, e.PaidBy.ID, e.Date, e.Image, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// Settle reads the full ledger and flips every unsettled expense to settled
// inside one transaction. The returned snapshot is exactly the state the
// flip acted on, so the settlement report computed from it cannot drift from
// what was persisted. The conditional WHERE keeps concurrent calls from
// double-settling: the second caller simply flips zero rows.
func (r *SQLiteRepository) Settle(ctx context.Context) ([]core.Expense, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin settle transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses e JOIN users u ON u.id = e.paid_by ORDER BY e.created_at, e.id`)
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot ledger: %w", err)
	}
	var snapshot []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan ledger row: %w", err)
		}
		snapshot = append(snapshot, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("iterate ledger: %w", err)
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `UPDATE expenses SET is_settled = 1 WHERE is_settled = 0`)
	if err != nil {
		return nil, 0, fmt.Errorf("mark expenses settled: %w", err)
	}
	flipped, err := res.RowsAffected()
	if err != nil {
		return nil, 0, fmt.Errorf("settle rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit settle transaction: %w", err)
	}

	slog.InfoContext(ctx, "Ledger settled",
		"snapshot_size", len(snapshot),
		"flipped", flipped)

	return snapshot, flipped, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e        core.Expense
		settled  int
		verified int
	)
	err := row.Scan(
		&e.ID, &e.Description, &e.Amount.Cents, &e.Date, &e.Image, &settled, &e.CreatedAt,
		&e.PaidBy.ID, &e.PaidBy.Name, &e.PaidBy.Email, &verified)
	if err != nil {
		return core.Expense{}, err
	}
	e.Settled = settled != 0
	e.PaidBy.Verified = verified != 0
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
