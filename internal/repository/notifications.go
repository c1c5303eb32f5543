package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// CreateNotification сохраняет уведомление.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, type, message, user_id, checkout_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		n.ID, n.Type, n.Message, n.UserID, n.CheckoutID,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications возвращает уведомления пользователя, новые первыми.
func (r *PostgresRepository) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, type, message, user_id, checkout_id, is_seen, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.Type, &n.Message, &n.UserID, &n.CheckoutID, &n.IsSeen, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationsSeen помечает прочитанными уведомления пользователя из ids
// и возвращает число изменённых записей.
func (r *PostgresRepository) MarkNotificationsSeen(ctx context.Context, userID string, ids []string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_seen = TRUE
		 WHERE user_id = $1 AND id = ANY($2) AND NOT is_seen`,
		userID, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications seen: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteNotification удаляет одно уведомление пользователя.
func (r *PostgresRepository) DeleteNotification(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ClearNotifications удаляет все уведомления пользователя.
func (r *PostgresRepository) ClearNotifications(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
