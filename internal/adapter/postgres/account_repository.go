package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/renangcr/devProperties/internal/domain"
)

const uniqueViolation = "23505"

// accountColumns must match the Scan order in scanAccount.
const accountColumns = `id, email, display_name, password_hash, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

var _ domain.AccountRepository = (*AccountRepo)(nil)

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, email, passwordHash string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, email, password_hash) VALUES ($1, $2, $3) RETURNING `+accountColumns,
		uuid.New(), email, passwordHash)

	account, err := scanAccount(row)
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr.Code == uniqueViolation {
		return nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	return account, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return r.get(row, "id")
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return r.get(row, "email")
}

func (r *AccountRepo) get(row pgx.Row, by string) (*domain.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by %s: %w", by, err)
	}
	return account, nil
}

func (r *AccountRepo) UpdateDisplayName(ctx context.Context, accountID uuid.UUID, displayName string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET display_name = $2, updated_at = now() WHERE id = $1`,
		accountID, displayName)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
