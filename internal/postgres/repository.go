// Package postgres provides the PostgreSQL-backed ledger.Store.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var _ ledger.Store = (*Repository)(nil)

type Repository struct {
	db *sql.DB
}

// NewRepository connects to Postgres with the given DSN and runs goose
// migrations from the embedded FS.
func NewRepository(dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, verified, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, u.Email, u.Verified, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return u.ID, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	return r.listUsers(ctx, `SELECT id, name, email, verified FROM users ORDER BY name`)
}

func (r *Repository) ListVerifiedUsers(ctx context.Context) ([]core.User, error) {
	return r.listUsers(ctx, `SELECT id, name, email, verified FROM users WHERE verified ORDER BY name`)
}

func (r *Repository) listUsers(ctx context.Context, query string) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Verified); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *Repository) Append(ctx context.Context, e core.Expense) (string, error) {
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
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
		e.ID, e.Description, e.Amount.Cents, e.PaidBy.ID, e.Date, e.Image, e.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	return e.ID, nil
}

const expenseColumns = `e.id, e.description, e.amount_cents, e.date, e.image, e.is_settled, e.created_at,
	u.id, u.name, u.email, u.verified`

func (r *Repository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses e JOIN users u ON u.id = e.paid_by WHERE e.id = $1`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context, f ledger.ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses e JOIN users u ON u.id = e.paid_by`
	var (
		where []string
		args  []any
	)
	if f.Settled != nil {
		args = append(args, *f.Settled)
		where = append(where, fmt.Sprintf(`e.is_settled = $%d`, len(args)))
	}
	if f.PaidBy != "" {
		args = append(args, f.PaidBy)
		where = append(where, fmt.Sprintf(`e.paid_by = $%d`, len(args)))
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

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET description = $1, amount_cents = $2, paid_by = $3, date = $4, image = $5 WHERE id = $6`,
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

func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
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

// Settle snapshots the full ledger and flips unsettled expenses inside one
// transaction, same contract as the SQLite backend. The snapshot query locks
// nothing extra: the conditional UPDATE is what guards against concurrent
// double-settling.
func (r *Repository) Settle(ctx context.Context) ([]core.Expense, int64, error) {
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

	res, err := tx.ExecContext(ctx, `UPDATE expenses SET is_settled = TRUE WHERE is_settled = FALSE`)
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
	var e core.Expense
	err := row.Scan(
		&e.ID, &e.Description, &e.Amount.Cents, &e.Date, &e.Image, &e.Settled, &e.CreatedAt,
		&e.PaidBy.ID, &e.PaidBy.Name, &e.PaidBy.Email, &e.PaidBy.Verified)
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}
