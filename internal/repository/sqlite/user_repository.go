package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"course-auth/internal/domain"
	"course-auth/internal/repository"
)

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

const selectAccount = `
SELECT id, username, email, password_hash, role, created_at
FROM accounts`

// AccountRepository stores accounts in a sqlite table. Row order follows
// first insertion, matching the json store's append order.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ repository.AccountStore = (*AccountRepository)(nil)

func (r *AccountRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAccountsTable); err != nil {
		return fmt.Errorf("%w: create accounts table: %w", repository.ErrStorage, err)
	}
	return nil
}

func (r *AccountRepository) FindOne(ctx context.Context, match repository.Predicate) (*domain.Account, error) {
	accounts, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if found, ok := repository.First(accounts, match); ok {
		return found, nil
	}
	return nil, repository.ErrNotFound
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+`
WHERE id = ?`,
		id,
	)
	return scanAccount(row)
}

func (r *AccountRepository) Insert(ctx context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" {
		return errors.New("account id is required")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO accounts (id, username, email, password_hash, role, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	username = excluded.username,
	email = excluded.email,
	password_hash = excluded.password_hash,
	role = excluded.role,
	created_at = excluded.created_at`,
		account.ID,
		account.Username,
		account.Email,
		account.PasswordHash,
		string(account.Role),
		account.CreatedAt.UTC(),
	)
	if err != nil {
		return wrapWriteErr("insert account", err)
	}
	return nil
}

func (r *AccountRepository) Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin update: %w", repository.ErrStorage, err)
	}
	defer tx.Rollback()

	current, err := scanAccount(tx.QueryRowContext(ctx, selectAccount+`
WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	updated := patch.Apply(*current)

	if _, err := tx.ExecContext(ctx, `
UPDATE accounts
SET username = ?, email = ?, password_hash = ?, role = ?
WHERE id = ?`,
		updated.Username,
		updated.Email,
		updated.PasswordHash,
		string(updated.Role),
		id,
	); err != nil {
		return nil, wrapWriteErr("update account", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit update: %w", repository.ErrStorage, err)
	}
	return &updated, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete account: %w", repository.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete account rows: %w", repository.ErrStorage, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count accounts: %w", repository.ErrStorage, err)
	}
	return n, nil
}

func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, selectAccount+`
ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list accounts: %w", repository.ErrStorage, err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate accounts: %w", repository.ErrStorage, err)
	}
	return accounts, nil
}

// Snapshot exports every account as a JSON array in the json store layout.
func (r *AccountRepository) Snapshot(ctx context.Context) ([]byte, error) {
	accounts, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func scanAccount(row interface {
	Scan(dest ...any) error
}) (*domain.Account, error) {
	var (
		account domain.Account
		role    string
	)
	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&role,
		&account.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan account: %w", repository.ErrStorage, err)
	}
	account.Role = domain.Role(role)
	return &account, nil
}

func wrapWriteErr(op string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "unique") {
		return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
	}
	return fmt.Errorf("%w: %s: %w", repository.ErrStorage, op, err)
}
