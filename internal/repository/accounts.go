package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

const accountColumns = `id, role, name, COALESCE(email, ''), COALESCE(phone, ''), password_hash, picture, is_verified, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a    model.Account
		role string
	)
	err := row.Scan(&a.ID, &role, &a.Name, &a.Email, &a.Phone, &a.PasswordHash, &a.Picture, &a.IsVerified, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = model.Role(role)
	return &a, nil
}

func insertAccount(ctx context.Context, q pgx.Tx, a *model.Account) error {
	err := q.QueryRow(ctx,
		`INSERT INTO accounts (id, role, name, email, phone, password_hash, picture, is_verified)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		 RETURNING created_at`,
		a.ID, string(a.Role), a.Name, a.Email, a.Phone, a.PasswordHash, a.Picture, a.IsVerified,
	).Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAccountExists, a.Role)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// CreateAccount создаёт учётную запись.
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return insertAccount(ctx, tx, a)
	})
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetAccountByEmail возвращает учётную запись роли role по email.
func (r *PostgresRepository) GetAccountByEmail(ctx context.Context, role model.Role, email string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE role = $1 AND email = $2`, string(role), email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// GetAccountByPhone возвращает учётную запись роли role по телефону.
func (r *PostgresRepository) GetAccountByPhone(ctx context.Context, role model.Role, phone string) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE role = $1 AND phone = $2`, string(role), phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by phone: %w", err)
	}
	return a, nil
}

// SetAccountVerified меняет признак верификации учётной записи.
func (r *PostgresRepository) SetAccountVerified(ctx context.Context, id string, verified bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET is_verified = $2 WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
