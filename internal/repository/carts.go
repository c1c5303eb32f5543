package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// AddCartItem добавляет позицию в корзину клиента, создавая корзину при первом обращении.
func (r *PostgresRepository) AddCartItem(ctx context.Context, customerID string, item model.CartItem) (*model.Cart, error) {
	c := model.Cart{CustomerID: customerID}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO carts (customer_id, items)
		 VALUES ($1, jsonb_build_array($2::jsonb))
		 ON CONFLICT (customer_id) DO UPDATE
		 SET items = carts.items || EXCLUDED.items, updated_at = now()
		 RETURNING items, updated_at`,
		customerID, item,
	).Scan(&c.Items, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return &c, nil
}

// GetCart возвращает корзину клиента. Отсутствующая корзина считается пустой.
func (r *PostgresRepository) GetCart(ctx context.Context, customerID string) (*model.Cart, error) {
	c := model.Cart{CustomerID: customerID}
	err := r.pool.QueryRow(ctx,
		`SELECT items, updated_at FROM carts WHERE customer_id = $1`, customerID,
	).Scan(&c.Items, &c.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	return &c, nil
}

// ClearCart удаляет корзину клиента.
func (r *PostgresRepository) ClearCart(ctx context.Context, customerID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE customer_id = $1`, customerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
