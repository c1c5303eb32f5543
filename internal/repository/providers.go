package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// Признак верификации магазина берётся из учётной записи владельца.
const providerSelect = `SELECT p.id, p.owner_id, p.name, p.address, p.picture, p.services_offered,
	p.location_coordinates, p.location_area, p.is_live, a.is_verified, p.reviews,
	p.cancel_request_count, p.is_blocked, p.blocked_at, p.created_at
	FROM providers p JOIN accounts a ON a.id = p.owner_id`

func scanProvider(row pgx.Row) (*model.Provider, error) {
	var p model.Provider
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Address, &p.Picture, &p.ServicesOffered,
		&p.Location.Coordinates, &p.Location.Area, &p.IsLive, &p.IsVerified, &p.Reviews,
		&p.CancelRequestCount, &p.IsBlocked, &p.BlockedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProvider создаёт магазин. У владельца может быть только один магазин.
func (r *PostgresRepository) CreateProvider(ctx context.Context, p *model.Provider) error {
	services := p.ServicesOffered
	if services == nil {
		services = []model.ServiceOffering{}
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO providers (id, owner_id, name, address, picture, services_offered, location_coordinates, location_area)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		p.ID, p.OwnerID, p.Name, p.Address, p.Picture, services, p.Location.Coordinates, p.Location.Area,
	).Scan(&p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: owner %s", ErrProviderExists, p.OwnerID)
		}
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

// GetProvider возвращает магазин по идентификатору.
func (r *PostgresRepository) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	p, err := scanProvider(r.pool.QueryRow(ctx, providerSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

// GetProviderByOwner возвращает магазин владельца.
func (r *PostgresRepository) GetProviderByOwner(ctx context.Context, ownerID string) (*model.Provider, error) {
	p, err := scanProvider(r.pool.QueryRow(ctx, providerSelect+` WHERE p.owner_id = $1`, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("get provider by owner: %w", err)
	}
	return p, nil
}

// ListProviders возвращает магазины в порядке создания. liveOnly оставляет только активные.
func (r *PostgresRepository) ListProviders(ctx context.Context, liveOnly bool) ([]model.Provider, error) {
	rows, err := r.pool.Query(ctx,
		providerSelect+` WHERE ($1 = FALSE OR p.is_live) ORDER BY p.created_at, p.id`,
		liveOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("select providers: %w", err)
	}
	defer rows.Close()

	var res []model.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func (r *PostgresRepository) execProvider(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// UpdateCatalog заменяет список услуг магазина.
func (r *PostgresRepository) UpdateCatalog(ctx context.Context, id string, services []model.ServiceOffering) error {
	if services == nil {
		services = []model.ServiceOffering{}
	}
	return r.execProvider(ctx, "update catalog",
		`UPDATE providers SET services_offered = $2 WHERE id = $1`, id, services)
}

// UpdateProviderLocation меняет координаты магазина.
func (r *PostgresRepository) UpdateProviderLocation(ctx context.Context, id string, loc model.Location) error {
	return r.execProvider(ctx, "update provider location",
		`UPDATE providers SET location_coordinates = $2, location_area = $3 WHERE id = $1`,
		id, loc.Coordinates, loc.Area)
}

// SetProviderLive включает или выключает приём заказов магазином.
func (r *PostgresRepository) SetProviderLive(ctx context.Context, id string, live bool) error {
	return r.execProvider(ctx, "update provider live",
		`UPDATE providers SET is_live = $2 WHERE id = $1`, id, live)
}

// AddReview добавляет отзыв к магазину.
func (r *PostgresRepository) AddReview(ctx context.Context, id string, review model.Review) error {
	return r.execProvider(ctx, "add review",
		`UPDATE providers SET reviews = reviews || $2::jsonb WHERE id = $1`,
		id, []model.Review{review})
}

// IncrementCancelCount атомарно увеличивает счётчик отмен незаблокированного магазина
// и возвращает новое значение.
func (r *PostgresRepository) IncrementCancelCount(ctx context.Context, id string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE providers SET cancel_request_count = cancel_request_count + 1
		 WHERE id = $1 AND NOT is_blocked
		 RETURNING cancel_request_count`,
		id,
	).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("increment cancel count: %w", err)
	}

	var blocked bool
	err = r.pool.QueryRow(ctx, `SELECT is_blocked FROM providers WHERE id = $1`, id).Scan(&blocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProviderNotFound
		}
		return 0, fmt.Errorf("select provider block: %w", err)
	}
	return 0, ErrProviderBlocked
}

// BlockProvider блокирует магазин с момента at.
func (r *PostgresRepository) BlockProvider(ctx context.Context, id string, at time.Time) error {
	return r.execProvider(ctx, "block provider",
		`UPDATE providers SET is_blocked = TRUE, blocked_at = $2 WHERE id = $1`, id, at)
}

// ResetCancelState безусловно снимает блокировку и обнуляет счётчик отмен.
func (r *PostgresRepository) ResetCancelState(ctx context.Context, id string) error {
	return r.execProvider(ctx, "reset cancel state",
		`UPDATE providers SET cancel_request_count = 0, is_blocked = FALSE, blocked_at = NULL WHERE id = $1`, id)
}

// ExpireBlock снимает блокировку, начавшуюся не позже cutoff. Возвращает true, если блокировка снята.
func (r *PostgresRepository) ExpireBlock(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE providers SET cancel_request_count = 0, is_blocked = FALSE, blocked_at = NULL
		 WHERE id = $1 AND is_blocked AND blocked_at <= $2`,
		id, cutoff,
	)
	if err != nil {
		return false, fmt.Errorf("expire block: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
