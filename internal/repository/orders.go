package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

const orderColumns = `id, order_group_id, checkout_id, customer_id, provider_id, provider_owner_id,
	category, sub_category, location_coordinates, location_area, cost, service_charges,
	assignment_worker_id, assignment_assigned_at, assignment_status, status, transaction_id, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o            model.Order
		cost         int64
		workerID     *string
		assignStatus string
		status       string
		txID         *string
	)
	err := row.Scan(&o.ID, &o.OrderID, &o.CheckoutID, &o.CustomerID, &o.ProviderID, &o.ProviderOwnerID,
		&o.Category, &o.SubCategory, &o.Location.Coordinates, &o.Location.Area, &cost, &o.ServiceCharges,
		&workerID, &o.Assignment.AssignedAt, &assignStatus, &status, &txID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	o.Cost = fromCents(cost)
	o.Assignment.Status = model.AssignmentStatus(assignStatus)
	o.Status = model.OrderStatus(status)
	if workerID != nil {
		o.Assignment.WorkerID = *workerID
	}
	if txID != nil {
		o.TransactionID = *txID
	}
	return &o, nil
}

// CreateOrders сохраняет все заказы одной заявки клиента в одной транзакции.
func (r *PostgresRepository) CreateOrders(ctx context.Context, orders []model.Order) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for i := range orders {
			o := &orders[i]
			err := tx.QueryRow(ctx,
				`INSERT INTO orders (id, order_group_id, checkout_id, customer_id, provider_id, provider_owner_id,
					category, sub_category, location_coordinates, location_area, cost, service_charges,
					assignment_status, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
				 RETURNING created_at`,
				o.ID, o.OrderID, o.CheckoutID, o.CustomerID, o.ProviderID, o.ProviderOwnerID,
				o.Category, o.SubCategory, o.Location.Coordinates, o.Location.Area, toCents(o.Cost), o.ServiceCharges,
				string(o.Assignment.Status), string(o.Status),
			).Scan(&o.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
		}
		return nil
	})
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders возвращает заказы по фильтру, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.ProviderOwnerID != "" {
		add("provider_owner_id = $%d", f.ProviderOwnerID)
	}
	if f.WorkerID != "" {
		add("assignment_worker_id = $%d", f.WorkerID)
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(f.Statuses))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// TransitionOrder атомарно переводит заказ в статус to, если его текущий статус входит в from.
// Если assignment не nil, вместе со статусом перезаписывается назначение.
func (r *PostgresRepository) TransitionOrder(ctx context.Context, id string, from []model.OrderStatus, to model.OrderStatus, assignment *model.Assignment) (*model.Order, error) {
	var row pgx.Row
	if assignment == nil {
		row = r.pool.QueryRow(ctx,
			`UPDATE orders SET status = $2
			 WHERE id = $1 AND status = ANY($3)
			 RETURNING `+orderColumns,
			id, string(to), statusStrings(from),
		)
	} else {
		row = r.pool.QueryRow(ctx,
			`UPDATE orders SET status = $2,
				assignment_worker_id = NULLIF($4, ''),
				assignment_assigned_at = $5,
				assignment_status = $6
			 WHERE id = $1 AND status = ANY($3)
			 RETURNING `+orderColumns,
			id, string(to), statusStrings(from),
			assignment.WorkerID, assignment.AssignedAt, string(assignment.Status),
		)
	}

	o, err := scanOrder(row)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition order: %w", err)
	}

	var current string
	err = r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order status: %w", err)
	}
	return nil, fmt.Errorf("%w: order %s is %s", ErrStatusMismatch, id, current)
}

// DeleteOrder переводит заказ из любого неконечного состояния в deleted и возвращает
// состояние, в котором заказ был до удаления. Строка блокируется на время транзакции,
// поэтому параллельный переход не может вклиниться между чтением и обновлением.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, id string) (model.OrderStatus, *model.Order, error) {
	var (
		prior   model.OrderStatus
		updated *model.Order
	)
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		prior = model.OrderStatus(current)
		if prior.IsTerminal() {
			return fmt.Errorf("%w: order %s is %s", ErrStatusMismatch, id, current)
		}

		o, err := scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1 RETURNING `+orderColumns,
			id, string(model.OrderStatusDeleted),
		))
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return prior, nil, err
	}
	return prior, updated, nil
}

// CreateTransaction сохраняет расчёт и помечает его заказы рассчитанными.
// Если хотя бы один заказ уже рассчитан или не выполнен, ничего не сохраняется.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE orders SET transaction_id = $1
			 WHERE id = ANY($2) AND transaction_id IS NULL AND status = $3`,
			t.ID, t.OrderIDs, string(model.OrderStatusCompleted),
		)
		if err != nil {
			return fmt.Errorf("mark orders settled: %w", err)
		}
		if tag.RowsAffected() != int64(len(t.OrderIDs)) {
			return ErrAlreadySettled
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO transactions (id, provider_owner_id, worker_id, customer_id, order_ids,
				total_amount, delivery_charge, total_payable)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING date`,
			t.ID, t.ProviderOwnerID, t.WorkerID, t.CustomerID, t.OrderIDs,
			toCents(t.TotalAmount), toCents(t.DeliveryCharge), toCents(t.TotalPayable),
		).Scan(&t.Date)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
}

// ListTransactionsByProviderOwner возвращает расчёты владельца магазина, новые первыми.
func (r *PostgresRepository) ListTransactionsByProviderOwner(ctx context.Context, ownerID string) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, provider_owner_id, worker_id, customer_id, order_ids,
			total_amount, delivery_charge, total_payable, date
		 FROM transactions
		 WHERE provider_owner_id = $1
		 ORDER BY date DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var (
			t                         model.Transaction
			amount, delivery, payable int64
			date                      time.Time
		)
		if err := rows.Scan(&t.ID, &t.ProviderOwnerID, &t.WorkerID, &t.CustomerID, &t.OrderIDs,
			&amount, &delivery, &payable, &date); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.TotalAmount = fromCents(amount)
		t.DeliveryCharge = fromCents(delivery)
		t.TotalPayable = fromCents(payable)
		t.Date = date
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
