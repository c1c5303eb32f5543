package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

const workerColumns = `id, provider_id, provider_owner_id, name, phone, picture, active_orders > 0,
	order_count, active_orders, location_coordinates, location_area, created_at`

func scanWorker(row pgx.Row) (*model.Worker, error) {
	var w model.Worker
	err := row.Scan(&w.ID, &w.ProviderID, &w.ProviderOwnerID, &w.Name, &w.Phone, &w.Picture, &w.IsBusy,
		&w.OrderCount, &w.ActiveOrders, &w.Location.Coordinates, &w.Location.Area, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWorker создаёт учётную запись сотрудника и его карточку в одной транзакции.
func (r *PostgresRepository) CreateWorker(ctx context.Context, a *model.Account, w *model.Worker) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertAccount(ctx, tx, a); err != nil {
			return err
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO workers (id, provider_id, provider_owner_id, name, phone, picture, location_coordinates, location_area)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING created_at`,
			w.ID, w.ProviderID, w.ProviderOwnerID, w.Name, w.Phone, w.Picture, w.Location.Coordinates, w.Location.Area,
		).Scan(&w.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: phone %s", ErrAccountExists, w.Phone)
			}
			return fmt.Errorf("insert worker: %w", err)
		}
		return nil
	})
}

// GetWorker возвращает сотрудника по идентификатору.
func (r *PostgresRepository) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	w, err := scanWorker(r.pool.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return w, nil
}

// ListWorkersByProvider возвращает сотрудников магазина.
func (r *PostgresRepository) ListWorkersByProvider(ctx context.Context, providerID string) ([]model.Worker, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE provider_id = $1 ORDER BY created_at`,
		providerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select workers: %w", err)
	}
	defer rows.Close()

	var res []model.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		res = append(res, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddWorkerOrders атомарно добавляет сотруднику n активных заказов.
func (r *PostgresRepository) AddWorkerOrders(ctx context.Context, id string, n int) (*model.Worker, error) {
	w, err := scanWorker(r.pool.QueryRow(ctx,
		`UPDATE workers SET order_count = order_count + $2, active_orders = active_orders + $2
		 WHERE id = $1
		 RETURNING `+workerColumns,
		id, n,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("add worker orders: %w", err)
	}
	return w, nil
}

// ReleaseWorkerOrders атомарно уменьшает число активных заказов сотрудника на n.
func (r *PostgresRepository) ReleaseWorkerOrders(ctx context.Context, id string, n int) (*model.Worker, error) {
	w, err := scanWorker(r.pool.QueryRow(ctx,
		`UPDATE workers SET active_orders = GREATEST(active_orders - $2, 0)
		 WHERE id = $1
		 RETURNING `+workerColumns,
		id, n,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("release worker orders: %w", err)
	}
	return w, nil
}

// UpdateWorkerLocation обновляет текущие координаты сотрудника.
func (r *PostgresRepository) UpdateWorkerLocation(ctx context.Context, id string, loc model.Location) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE workers SET location_coordinates = $2, location_area = $3 WHERE id = $1`,
		id, loc.Coordinates, loc.Area,
	)
	if err != nil {
		return fmt.Errorf("update worker location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkerNotFound
	}
	return nil
}
